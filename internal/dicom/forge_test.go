package dicom

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom/pkg/frame"
)

func TestForge_WritesLayout(t *testing.T) {
	tmpDir := t.TempDir()

	files, err := Forge(ForgeOptions{
		OutputDir: tmpDir,
		Seed:      42,
		Patients:  SimpleLayout(2, 1, 2, 3, "CT"),
		Malformed: 1,
		FrameSize: 16,
	})
	if err != nil {
		t.Fatalf("Forge failed: %v", err)
	}

	// 2 patients × 1 study × 2 series × 3 images + 1 malformed
	if len(files) != 13 {
		t.Fatalf("Expected 13 files, got %d", len(files))
	}

	first := files[0]
	want := filepath.Join(tmpDir, "PT000000", "ST000000", "SE000000", "IM000001.dcm")
	if first.Path != want {
		t.Errorf("Expected first path %s, got %s", want, first.Path)
	}
	if first.InstanceNumber != 1 {
		t.Errorf("Expected instance number 1, got %d", first.InstanceNumber)
	}

	last := files[len(files)-1]
	if !last.Malformed {
		t.Error("Expected last file to be malformed")
	}
	if !strings.HasPrefix(filepath.Base(last.Path), "BROKEN") {
		t.Errorf("Expected malformed file name to start with BROKEN, got %s", filepath.Base(last.Path))
	}

	for _, f := range files {
		if _, err := os.Stat(f.Path); err != nil {
			t.Errorf("Expected %s to exist: %v", f.Path, err)
		}
	}
}

func TestForge_DeterministicUIDs(t *testing.T) {
	layout := SimpleLayout(1, 1, 1, 2, "MR")

	a, err := Forge(ForgeOptions{OutputDir: t.TempDir(), Seed: 7, Patients: layout, FrameSize: 16})
	if err != nil {
		t.Fatalf("Forge failed: %v", err)
	}
	b, err := Forge(ForgeOptions{OutputDir: t.TempDir(), Seed: 7, Patients: layout, FrameSize: 16})
	if err != nil {
		t.Fatalf("Forge failed: %v", err)
	}

	for i := range a {
		if a[i].SOPInstanceUID != b[i].SOPInstanceUID {
			t.Errorf("File %d: expected same SOP Instance UID, got %s and %s", i, a[i].SOPInstanceUID, b[i].SOPInstanceUID)
		}
		if !strings.HasPrefix(a[i].SOPInstanceUID, uidRoot+".") {
			t.Errorf("UID %s does not use root %s", a[i].SOPInstanceUID, uidRoot)
		}
	}
	if a[0].SOPInstanceUID == a[1].SOPInstanceUID {
		t.Error("Expected distinct SOP Instance UIDs within a series")
	}
	if a[0].SeriesUID != a[1].SeriesUID {
		t.Error("Expected images of one series to share the Series Instance UID")
	}
}

func TestForge_NoExtension(t *testing.T) {
	files, err := Forge(ForgeOptions{
		OutputDir: t.TempDir(),
		Seed:      1,
		Patients:  SimpleLayout(1, 1, 1, 1, ""),
		Extension: "none",
		FrameSize: 16,
	})
	if err != nil {
		t.Fatalf("Forge failed: %v", err)
	}
	if ext := filepath.Ext(files[0].Path); ext != "" {
		t.Errorf("Expected no extension, got %q", ext)
	}
}

func TestForge_Validation(t *testing.T) {
	if _, err := Forge(ForgeOptions{}); err == nil {
		t.Error("Expected error for missing output directory")
	}
	if _, err := Forge(ForgeOptions{OutputDir: t.TempDir(), Malformed: -1}); err == nil {
		t.Error("Expected error for negative malformed count")
	}
	bad := []ForgePatient{{Studies: []ForgeStudy{{Series: []ForgeSeries{{Images: -2}}}}}}
	if _, err := Forge(ForgeOptions{OutputDir: t.TempDir(), Patients: bad}); err == nil {
		t.Error("Expected error for negative image count")
	}
}

func TestForge_ProgressCallback(t *testing.T) {
	var calls, lastTotal int
	_, err := Forge(ForgeOptions{
		OutputDir: t.TempDir(),
		Seed:      3,
		Patients:  SimpleLayout(1, 1, 1, 4, "MR"),
		FrameSize: 16,
		Workers:   2,
		ProgressCallback: func(current, total int) {
			calls++
			lastTotal = total
		},
	})
	if err != nil {
		t.Fatalf("Forge failed: %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 progress calls, got %d", calls)
	}
	if lastTotal != 4 {
		t.Errorf("Expected total 4, got %d", lastTotal)
	}
}

func TestDrawOverlay_MarksPixels(t *testing.T) {
	const size = 32
	nf := frame.NewNativeFrame[uint16](16, size, size, size*size, 1)

	drawOverlay(nf, size, size, "1/2")

	lit := 0
	for _, v := range nf.RawData {
		if v == 4095 {
			lit++
		}
	}
	if lit == 0 {
		t.Error("Expected overlay to light some pixels")
	}

	blank := frame.NewNativeFrame[uint16](16, size, size, size*size, 1)
	drawOverlay(blank, size, size, "")
	for _, v := range blank.RawData {
		if v != 0 {
			t.Fatal("Expected empty overlay to leave the frame untouched")
		}
	}
}

func TestDeterministicUID(t *testing.T) {
	a := deterministicUID(1, "patient", 0)
	b := deterministicUID(1, "patient", 0)
	c := deterministicUID(2, "patient", 0)
	if a != b {
		t.Errorf("Expected same UID for same input, got %s and %s", a, b)
	}
	if a == c {
		t.Error("Expected different UIDs for different seeds")
	}
	if len(a) > 64 {
		t.Errorf("UID longer than 64 characters: %s", a)
	}
}
