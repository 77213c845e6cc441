package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrsinham/dicomfolder/cmd/dicomfolder/browser"
	"github.com/mrsinham/dicomfolder/internal/config"
	"github.com/mrsinham/dicomfolder/internal/dicom"
	"github.com/xuri/excelize/v2"
)

// forgeFolder writes 1 patient, 1 study, 2 series of 3 images and one broken file.
func forgeFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := dicom.Forge(dicom.ForgeOptions{
		OutputDir: dir,
		Seed:      7,
		Patients:  dicom.SimpleLayout(1, 1, 2, 3, "MR"),
		Malformed: 1,
		FrameSize: 16,
		Workers:   2,
	})
	if err != nil {
		t.Fatalf("Failed to forge folder: %v", err)
	}
	return dir
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_NoArgs(t *testing.T) {
	code, _, stderr := runCLI()
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("Expected usage on stderr, got %q", stderr)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI("organize")
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, `unknown command "organize"`) {
		t.Errorf("Unexpected stderr: %q", stderr)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI("--version")
	if code != 0 || stdout != "dicomfolder dev\n" {
		t.Errorf("Expected version line, got %d %q", code, stdout)
	}
}

func TestRun_HelpListsAttributes(t *testing.T) {
	code, stdout, _ := runCLI("--help")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	for _, want := range []string{"scan <folder>", "SeriesInstanceUID", "(key)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected help to contain %q", want)
		}
	}
}

func TestScan_Text(t *testing.T) {
	dir := forgeFolder(t)

	code, stdout, stderr := runCLI("scan", "--log-level", "disabled", dir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if got := strings.Count(stdout, "PATIENT "); got != 1 {
		t.Errorf("Expected 1 patient line, got %d", got)
	}
	if got := strings.Count(stdout, "SERIES "); got != 2 {
		t.Errorf("Expected 2 series lines, got %d", got)
	}
	if got := strings.Count(stdout, "IMAGE "); got != 6 {
		t.Errorf("Expected 6 image lines, got %d", got)
	}
	if !strings.Contains(stderr, "1 patients, 1 studies, 2 series, 6 instances from 7 candidate files") {
		t.Errorf("Expected summary on stderr, got %q", stderr)
	}
	if !strings.Contains(stderr, "1 files skipped") || !strings.Contains(stderr, "BROKEN0001.dcm") {
		t.Errorf("Expected skipped file on stderr, got %q", stderr)
	}
}

func TestScan_Depth(t *testing.T) {
	dir := forgeFolder(t)

	code, stdout, _ := runCLI("scan", "--log-level", "disabled", "--depth", "series", dir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	if strings.Contains(stdout, "IMAGE ") {
		t.Error("Expected no image lines at series depth")
	}
	if !strings.Contains(stdout, "(3 instances)") {
		t.Errorf("Expected instance count on series lines, got %q", stdout)
	}

	code, _, stderr := runCLI("scan", "--depth", "frame", dir)
	if code != 1 || !strings.Contains(stderr, "invalid depth") {
		t.Errorf("Expected invalid depth error, got %d %q", code, stderr)
	}
}

func TestScan_JSON(t *testing.T) {
	dir := forgeFolder(t)

	code, stdout, stderr := runCLI("scan", "--log-level", "disabled", "--format", "json", dir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	var out jsonOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out.Root != dir {
		t.Errorf("Expected root %s, got %s", dir, out.Root)
	}
	if len(out.Patients) != 1 || len(out.Patients[0].Studies) != 1 {
		t.Fatalf("Expected 1 patient with 1 study, got %+v", out.Patients)
	}
	series := out.Patients[0].Studies[0].Series
	if len(series) != 2 {
		t.Fatalf("Expected 2 series, got %d", len(series))
	}
	for _, se := range series {
		if len(se.Instances) != 3 {
			t.Errorf("Expected 3 instances in %s, got %d", se.SeriesInstanceUID, len(se.Instances))
		}
		if se.SeriesNumber == nil {
			t.Errorf("Expected series number on %s", se.SeriesInstanceUID)
		}
	}
	if len(out.Diagnostics) != 1 {
		t.Errorf("Expected 1 diagnostic, got %d", len(out.Diagnostics))
	}
}

func TestScan_EmptyFolder(t *testing.T) {
	code, stdout, stderr := runCLI("scan", "--log-level", "disabled", "--format", "json", t.TempDir())
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, `"patients": []`) {
		t.Errorf("Expected empty patient list, got %q", stdout)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	code, _, stderr := runCLI("scan", filepath.Join(t.TempDir(), "missing"))
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "root folder not found") {
		t.Errorf("Unexpected stderr: %q", stderr)
	}
}

func TestScan_Arguments(t *testing.T) {
	if code, _, _ := runCLI("scan"); code != 1 {
		t.Errorf("Expected exit code 1 without folder, got %d", code)
	}
	if code, _, _ := runCLI("scan", "--format", "xml", t.TempDir()); code != 1 {
		t.Errorf("Expected exit code 1 on bad format, got %d", code)
	}
	if code, _, _ := runCLI("scan", "--no-such-flag", t.TempDir()); code != 2 {
		t.Errorf("Expected exit code 2 on unknown flag, got %d", code)
	}
	if code, _, _ := runCLI("scan", "-h"); code != 0 {
		t.Errorf("Expected exit code 0 on -h, got %d", code)
	}
}

func TestScan_ExtensionFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := dicom.Forge(dicom.ForgeOptions{
		OutputDir: dir,
		Seed:      3,
		Patients:  dicom.SimpleLayout(1, 1, 1, 2, "CT"),
		Extension: ".ima",
		FrameSize: 16,
	})
	if err != nil {
		t.Fatalf("Failed to forge folder: %v", err)
	}

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.Save(config.Default(), cfgPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// .dcm from the config file matches nothing
	_, stdout, _ := runCLI("scan", "--log-level", "disabled", "--config", cfgPath, dir)
	if strings.Contains(stdout, "PATIENT") {
		t.Errorf("Expected no patient with .dcm extension, got %q", stdout)
	}

	saved := filepath.Join(t.TempDir(), "saved.yaml")
	_, stdout, _ = runCLI("scan", "--log-level", "disabled", "--config", cfgPath,
		"--ext", "IMA", "--save-config", saved, dir)
	if strings.Count(stdout, "IMAGE ") != 2 {
		t.Errorf("Expected 2 images with --ext IMA, got %q", stdout)
	}

	cfg, err := config.Load(saved)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if len(cfg.Scan.Extensions) != 1 || cfg.Scan.Extensions[0] != "IMA" {
		t.Errorf("Expected saved extensions [IMA], got %v", cfg.Scan.Extensions)
	}
	if cfg.Log.Level != "disabled" {
		t.Errorf("Expected saved log level disabled, got %q", cfg.Log.Level)
	}
}

func TestScan_BareNamesWithGlob(t *testing.T) {
	dir := t.TempDir()
	_, err := dicom.Forge(dicom.ForgeOptions{
		OutputDir: dir,
		Seed:      5,
		Patients:  dicom.SimpleLayout(1, 1, 1, 2, "MR"),
		Extension: "none",
		FrameSize: 16,
	})
	if err != nil {
		t.Fatalf("Failed to forge folder: %v", err)
	}

	for _, args := range [][]string{
		{"--glob", "IM*"},
		{"--sniff"},
	} {
		full := append([]string{"scan", "--log-level", "disabled"}, args...)
		_, stdout, _ := runCLI(append(full, dir)...)
		if strings.Count(stdout, "IMAGE ") != 2 {
			t.Errorf("Expected 2 images with %v, got %q", args, stdout)
		}
	}
}

func TestScan_HiddenFolders(t *testing.T) {
	dir := t.TempDir()
	_, err := dicom.Forge(dicom.ForgeOptions{
		OutputDir: filepath.Join(dir, ".archive"),
		Seed:      3,
		Patients:  dicom.SimpleLayout(1, 1, 1, 2, "CT"),
		FrameSize: 16,
	})
	if err != nil {
		t.Fatalf("Failed to forge folder: %v", err)
	}

	_, stdout, _ := runCLI("scan", "--log-level", "disabled", dir)
	if strings.Count(stdout, "IMAGE ") != 2 {
		t.Errorf("Expected 2 images under the hidden folder, got %q", stdout)
	}

	_, stdout, stderr := runCLI("scan", "--log-level", "disabled", "--skip-hidden", dir)
	if strings.Contains(stdout, "IMAGE ") {
		t.Errorf("Expected hidden folder to be skipped, got %q", stdout)
	}
	if !strings.Contains(stderr, "0 patients") {
		t.Errorf("Expected empty summary, got %q", stderr)
	}
}

func TestForge(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	code, stdout, stderr := runCLI("forge", "--log-level", "disabled", "--output", dir,
		"--patients", "2", "--images", "2", "--malformed", "1", "--frame-size", "16",
		"--tag", "StudyDescription=Knee")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Forged 5 files") {
		t.Errorf("Unexpected stdout: %q", stdout)
	}

	_, stdout, _ = runCLI("scan", "--log-level", "disabled", "--format", "json", dir)
	var out jsonOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if len(out.Patients) != 2 {
		t.Fatalf("Expected 2 patients, got %d", len(out.Patients))
	}
	for _, p := range out.Patients {
		if got := p.Studies[0].StudyDescription; got != "Knee" {
			t.Errorf("Expected overridden description, got %q", got)
		}
	}
}

func TestForge_InvalidOptions(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"--images", "0"}, "--images must be > 0"},
		{[]string{"--modality", "US"}, "invalid modality"},
		{[]string{"--tag", "PatientNam=X"}, `did you mean "PatientName"?`},
		{[]string{"--tag", "PatientName"}, "expected Name=Value"},
	}
	for _, tc := range cases {
		args := append([]string{"forge", "--output", t.TempDir()}, tc.args...)
		code, _, stderr := runCLI(args...)
		if code != 1 {
			t.Errorf("%v: expected exit code 1, got %d", tc.args, code)
		}
		if !strings.Contains(stderr, tc.want) {
			t.Errorf("%v: expected %q in stderr, got %q", tc.args, tc.want, stderr)
		}
	}
}

func TestBrowse_WiresScanner(t *testing.T) {
	dir := forgeFolder(t)

	var gotRoot string
	var gotSeries int
	runBrowser = func(root string, build browser.BuildFunc) error {
		gotRoot = root
		c, _, err := build(root)
		if err != nil {
			return err
		}
		gotSeries = c.Stats().Series
		return nil
	}
	t.Cleanup(func() { runBrowser = browser.Run })

	code, _, stderr := runCLI("browse", dir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if gotRoot != dir {
		t.Errorf("Expected root %s, got %s", dir, gotRoot)
	}
	if gotSeries != 2 {
		t.Errorf("Expected 2 series, got %d", gotSeries)
	}
	if stderr != "" {
		t.Errorf("Expected no log output while browsing, got %q", stderr)
	}

	if code, _, _ := runCLI("browse", dir, dir); code != 1 {
		t.Errorf("Expected exit code 1 with two folders, got %d", code)
	}
}

func TestScan_ExportAndMetrics(t *testing.T) {
	dir := forgeFolder(t)
	out := t.TempDir()
	xlsx := filepath.Join(out, "inventory.xlsx")
	metrics := filepath.Join(out, "scan.prom")

	code, _, stderr := runCLI("scan", "--log-level", "disabled", "--depth", "patient",
		"--export", xlsx, "--metrics-file", metrics, dir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	f, err := excelize.OpenFile(xlsx)
	if err != nil {
		t.Fatalf("Failed to open inventory: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(instancesSheet)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", instancesSheet, err)
	}
	// header + 6 instances, whatever the printed depth
	if len(rows) != 7 {
		t.Fatalf("Expected 7 rows, got %d", len(rows))
	}
	if rows[0][0] != "Patient ID" || !strings.HasSuffix(rows[1][len(rows[1])-1], "IM000001.dcm") {
		t.Errorf("Unexpected first rows: %v / %v", rows[0], rows[1])
	}

	skipped, err := f.GetRows(skippedSheet)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", skippedSheet, err)
	}
	if len(skipped) != 2 || !strings.HasSuffix(skipped[1][0], "BROKEN0001.dcm") {
		t.Errorf("Expected the broken file in %s, got %v", skippedSheet, skipped)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	for _, want := range []string{
		`dicomfolder_files_total{outcome="folded"} 6`,
		`dicomfolder_files_total{outcome="skipped"} 1`,
		`dicomfolder_scans_total{status="ok"} 1`,
		`dicomfolder_last_scan_instances 6`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}
