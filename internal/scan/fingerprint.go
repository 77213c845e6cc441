package scan

import (
	"fmt"
	"io"
	"os"

	"github.com/minio/highwayhash"
)

var fingerprintKey = []byte("dicomfolder-duplicate-instances!")

// fingerprint hashes the content of the file at path.
func fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(hash, f); err != nil {
		return 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hash.Sum64(), nil
}

// sameContent reports whether two files hold identical bytes.
func sameContent(a, b string) (bool, error) {
	ha, err := fingerprint(a)
	if err != nil {
		return false, err
	}
	hb, err := fingerprint(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
