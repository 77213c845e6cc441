package dicom

import (
	"encoding/binary"
	"fmt"
	"os"
)

// truncatePixelData cuts a written file in the middle of its PixelData value,
// the way an interrupted copy from a scanner leaves it. Every element before
// PixelData stays intact so the tolerant reader can still fold the file.
func truncatePixelData(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read file for truncation: %w", err)
	}

	offset, ok := pixelDataValueOffset(data)
	if !ok {
		return fmt.Errorf("no pixel data element in %s", filePath)
	}
	length := int(binary.LittleEndian.Uint32(data[offset-4 : offset]))
	cut := offset + length/2
	if cut >= len(data) {
		cut = offset
	}
	return os.WriteFile(filePath, data[:cut], 0644)
}

// pixelDataValueOffset returns the offset of the first value byte of the
// PixelData (7FE0,0010) element in an explicit VR little endian file.
func pixelDataValueOffset(data []byte) (int, bool) {
	// PixelData tag bytes: 0xE0, 0x7F, 0x10, 0x00 (Little Endian)
	for i := 0; i <= len(data)-12; i++ {
		if data[i] == 0xE0 && data[i+1] == 0x7F &&
			data[i+2] == 0x10 && data[i+3] == 0x00 {
			vr := string(data[i+4 : i+6])
			if vr == "OW" || vr == "OB" {
				// Long form: VR(2) + Reserved(2) + VL(4)
				return i + 12, true
			}
		}
	}
	return 0, false
}
