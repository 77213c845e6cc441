package dicom

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/big"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SOP classes used for forged images.
const (
	MRImageStorage = "1.2.840.10008.5.1.4.1.1.4"
	CTImageStorage = "1.2.840.10008.5.1.4.1.1.2"

	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	uidRoot                = "2.25"
	defaultFrameSize       = 64
)

// uidNamespace scopes the name-based UUIDs of forged UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("dicomfolder"))

// ForgeSeries describes one series to write.
type ForgeSeries struct {
	Description string
	Modality    string // MR or CT, MR when empty
	Images      int
	// OmitOptional leaves out every optional attribute (instance number,
	// position, orientation, series number and description).
	OmitOptional bool
	// Truncated cuts every file of the series in the middle of its pixel data.
	Truncated bool
}

// ForgeStudy describes one study to write.
type ForgeStudy struct {
	Description string
	Date        string // YYYYMMDD, random when empty
	Series      []ForgeSeries
}

// ForgePatient describes one patient to write.
type ForgePatient struct {
	ID   string // generated when empty
	Name string // generated when empty
	// Anonymous writes no PatientID tag at all.
	Anonymous bool
	Studies   []ForgeStudy
}

// ForgeOptions contains all parameters needed to forge a sample folder.
type ForgeOptions struct {
	OutputDir string
	Seed      int64
	Patients  []ForgePatient
	// Malformed is the number of extra files with a DICOM extension but no DICOM content.
	Malformed int
	// Extension of image files, ".dcm" when empty. Use "none" for bare IM000001 names.
	Extension string
	// FrameSize is the edge of the square pixel frame, 64 when zero.
	FrameSize int
	Workers   int
	// Tags override attribute values in every image file.
	Tags []TagOverride

	ProgressCallback func(current, total int)
}

// ForgedFile contains information about a forged file.
type ForgedFile struct {
	Path           string
	PatientID      string
	StudyUID       string
	SeriesUID      string
	SOPInstanceUID string
	InstanceNumber int
	Malformed      bool
}

// SimpleLayout builds a uniform layout of patients × studies × series × images.
func SimpleLayout(patients, studies, series, images int, modality string) []ForgePatient {
	out := make([]ForgePatient, patients)
	for p := range out {
		out[p].Studies = make([]ForgeStudy, studies)
		for s := range out[p].Studies {
			st := &out[p].Studies[s]
			st.Description = fmt.Sprintf("%s Study %d", strings.ToUpper(modalityOrDefault(modality)), s+1)
			st.Series = make([]ForgeSeries, series)
			for se := range st.Series {
				st.Series[se] = ForgeSeries{
					Description: fmt.Sprintf("Series %d", se+1),
					Modality:    modality,
					Images:      images,
				}
			}
		}
	}
	return out
}

// forgeTask contains all data needed to write a single file.
type forgeTask struct {
	index     int
	path      string
	overlay   string
	frameSize int
	elements  []*dicom.Element
	malformed bool
	truncated bool
	result    ForgedFile
}

// Forge writes the described folder under opts.OutputDir using a
// PTnnnnnn/STnnnnnn/SEnnnnnn/IMnnnnnn layout and returns the files in write order.
func Forge(opts ForgeOptions) ([]ForgedFile, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Malformed < 0 {
		return nil, fmt.Errorf("malformed count must be >= 0, got %d", opts.Malformed)
	}
	frameSize := opts.FrameSize
	if frameSize <= 0 {
		frameSize = defaultFrameSize
	}
	ext := opts.Extension
	switch ext {
	case "":
		ext = ".dcm"
	case "none":
		ext = ""
	}

	seed := opts.Seed
	if seed == 0 {
		// same directory = same UIDs
		h := fnv.New64a()
		_, _ = h.Write([]byte(opts.OutputDir))
		seed = int64(h.Sum64())
	}
	rng := randv2.New(randv2.NewPCG(uint64(seed), uint64(seed)))

	// Phase 1: build all tasks sequentially so UIDs and names stay deterministic
	var tasks []forgeTask
	total := 0
	for _, p := range opts.Patients {
		for _, st := range p.Studies {
			for _, se := range st.Series {
				if se.Images < 0 {
					return nil, fmt.Errorf("image count must be >= 0, got %d", se.Images)
				}
				total += se.Images
			}
		}
	}

	index := 0
	for pi, p := range opts.Patients {
		patientID := p.ID
		if patientID == "" {
			patientID = fmt.Sprintf("PID%06d", rng.IntN(900000)+100000)
		}
		patientName := p.Name
		if patientName == "" {
			patientName = generatePatientName(rng)
		}
		if p.Anonymous {
			patientID = ""
		}

		for si, st := range p.Studies {
			studyUID := deterministicUID(seed, "patient", pi, "study", si)
			studyID := fmt.Sprintf("STD%04d", rng.IntN(9000)+1000)
			studyDate := st.Date
			if studyDate == "" {
				studyDate = fmt.Sprintf("%04d%02d%02d", rng.IntN(5)+2020, rng.IntN(12)+1, rng.IntN(28)+1)
			}

			for sei, se := range st.Series {
				seriesUID := deterministicUID(seed, "patient", pi, "study", si, "series", sei)
				modality := modalityOrDefault(se.Modality)
				seriesDir := filepath.Join(opts.OutputDir,
					fmt.Sprintf("PT%06d", pi), fmt.Sprintf("ST%06d", si), fmt.Sprintf("SE%06d", sei))

				for ii := 1; ii <= se.Images; ii++ {
					index++
					sopUID := deterministicUID(seed, "patient", pi, "study", si, "series", sei, "instance", ii)

					elements := []*dicom.Element{
						mustNewElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
						mustNewElement(tag.SOPClassUID, []string{sopClassFor(modality)}),
						mustNewElement(tag.SOPInstanceUID, []string{sopUID}),
						mustNewElement(tag.StudyDate, []string{studyDate}),
						mustNewElement(tag.Modality, []string{modality}),
						mustNewElement(tag.PatientName, []string{patientName}),
					}
					if patientID != "" {
						elements = append(elements, mustNewElement(tag.PatientID, []string{patientID}))
					}
					if st.Description != "" {
						elements = append(elements, mustNewElement(tag.StudyDescription, []string{st.Description}))
					}
					if !se.OmitOptional && se.Description != "" {
						elements = append(elements, mustNewElement(tag.SeriesDescription, []string{se.Description}))
					}
					elements = append(elements,
						mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
						mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
						mustNewElement(tag.StudyID, []string{studyID}),
					)
					if !se.OmitOptional {
						z := float64(ii-1) * 2.5
						elements = append(elements,
							mustNewElement(tag.SeriesNumber, []string{fmt.Sprintf("%d", sei+1)}),
							mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", ii)}),
							mustNewElement(tag.ImagePositionPatient, []string{"-100.000000", "-100.000000", fmt.Sprintf("%.6f", z-100)}),
							mustNewElement(tag.ImageOrientationPatient, []string{"1.000000", "0.000000", "0.000000", "0.000000", "1.000000", "0.000000"}),
						)
					}
					elements = append(elements,
						mustNewElement(tag.SamplesPerPixel, []int{1}),
						mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
						mustNewElement(tag.Rows, []int{frameSize}),
						mustNewElement(tag.Columns, []int{frameSize}),
						mustNewElement(tag.BitsAllocated, []int{16}),
						mustNewElement(tag.BitsStored, []int{12}),
						mustNewElement(tag.HighBit, []int{11}),
						mustNewElement(tag.PixelRepresentation, []int{0}),
					)

					result := ForgedFile{
						PatientID:      patientID,
						StudyUID:       studyUID,
						SeriesUID:      seriesUID,
						SOPInstanceUID: sopUID,
						InstanceNumber: ii,
					}
					elements = applyOverrides(elements, opts.Tags, &result)

					tasks = append(tasks, forgeTask{
						index:     index,
						path:      filepath.Join(seriesDir, fmt.Sprintf("IM%06d%s", ii, ext)),
						overlay:   fmt.Sprintf("%d/%d", index, total),
						frameSize: frameSize,
						elements:  elements,
						truncated: se.Truncated,
						result:    result,
					})
				}
			}
		}
	}

	for m := 1; m <= opts.Malformed; m++ {
		index++
		path := filepath.Join(opts.OutputDir, fmt.Sprintf("BROKEN%04d%s", m, ext))
		tasks = append(tasks, forgeTask{index: index, path: path, malformed: true})
	}

	// Phase 2: write in parallel
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	taskChan := make(chan forgeTask, len(tasks))
	type taskResult struct {
		index int
		err   error
	}
	resultChan := make(chan taskResult, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				resultChan <- taskResult{task.index, writeTask(task)}
			}
		}()
	}
	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	var firstErr error
	for result := range resultChan {
		if result.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write file %d: %w", result.index, result.err)
		}
		completed++
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(completed, len(tasks))
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	files := make([]ForgedFile, len(tasks))
	for i, task := range tasks {
		files[i] = task.result
		files[i].Path = task.path
		files[i].Malformed = task.malformed
	}
	return files, nil
}

func writeTask(task forgeTask) error {
	if err := os.MkdirAll(filepath.Dir(task.path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if task.malformed {
		return os.WriteFile(task.path, []byte("this is not a DICOM file\n"), 0644)
	}

	size := task.frameSize
	nativeFrame := frame.NewNativeFrame[uint16](16, size, size, size*size, 1)
	center := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dist := math.Hypot(float64(x)-center, float64(y)-center) / center
			nativeFrame.RawData[y*size+x] = uint16(math.Max(0, 1.0-dist) * 2048)
		}
	}
	drawOverlay(nativeFrame, size, size, task.overlay)

	pixelData := dicom.PixelDataInfo{
		Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
	}
	elements := append(append([]*dicom.Element{}, task.elements...), mustNewElement(tag.PixelData, pixelData))
	sort.Slice(elements, func(i, j int) bool {
		if elements[i].Tag.Group != elements[j].Tag.Group {
			return elements[i].Tag.Group < elements[j].Tag.Group
		}
		return elements[i].Tag.Element < elements[j].Tag.Element
	})

	f, err := os.Create(task.path)
	if err != nil {
		return err
	}
	if err := dicom.Write(f, dicom.Dataset{Elements: elements}); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if task.truncated {
		return truncatePixelData(task.path)
	}
	return nil
}

// applyOverrides replaces or removes the elements named by overrides and keeps
// the identity keys of result in sync.
func applyOverrides(elements []*dicom.Element, overrides []TagOverride, result *ForgedFile) []*dicom.Element {
	for _, o := range overrides {
		kept := elements[:0]
		for _, e := range elements {
			if e.Tag != o.Attribute.Tag {
				kept = append(kept, e)
			}
		}
		elements = kept
		if o.Value != "" {
			elements = append(elements, mustNewElement(o.Attribute.Tag, strings.Split(o.Value, `\`)))
		}

		switch o.Attribute.Tag {
		case tag.PatientID:
			result.PatientID = o.Value
		case tag.StudyInstanceUID:
			result.StudyUID = o.Value
		case tag.SeriesInstanceUID:
			result.SeriesUID = o.Value
		case tag.SOPInstanceUID:
			result.SOPInstanceUID = o.Value
		}
	}
	return elements
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// deterministicUID derives a stable UUID-based UID (PS3.5 B.2) from the seed
// and a path of parts.
func deterministicUID(seed int64, parts ...any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", seed)
	for _, p := range parts {
		fmt.Fprintf(&sb, "_%v", p)
	}
	id := uuid.NewSHA1(uidNamespace, []byte(sb.String()))
	return uidRoot + "." + new(big.Int).SetBytes(id[:]).String()
}

func modalityOrDefault(m string) string {
	if m == "" {
		return "MR"
	}
	return strings.ToUpper(m)
}

func sopClassFor(modality string) string {
	if modality == "CT" {
		return CTImageStorage
	}
	return MRImageStorage
}

var (
	firstNames = []string{"James", "Mary", "John", "Patricia", "Pierre", "Camille", "Lucas", "Emma"}
	lastNames  = []string{"Smith", "Johnson", "Martin", "Bernard", "Dubois", "Garcia", "Moreau", "Lee"}
)

// generatePatientName returns a DICOM PN value (Last^First).
func generatePatientName(rng *randv2.Rand) string {
	return lastNames[rng.IntN(len(lastNames))] + "^" + firstNames[rng.IntN(len(firstNames))]
}
