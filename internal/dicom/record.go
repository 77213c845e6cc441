// Package dicom reads the hierarchy attributes of DICOM Part 10 files and forges
// small sample files for trying the scanner out.
package dicom

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNoElements is returned when a file yields no parseable element at all.
var ErrNoElements = errors.New("no elements parsed")

// ParseError reports a file that could not be turned into a record.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s is not a valid DICOM file: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s is not a valid DICOM file: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FileExtractor reads records from DICOM files on disk.
type FileExtractor struct {
	// Strict parses the whole header in one pass and fails on the first
	// malformed element. The default keeps every element read before the error.
	Strict bool
}

// Extract implements the scanner's extractor contract.
func (x FileExtractor) Extract(path string) (hierarchy.Record, error) {
	return ReadRecord(path, x.Strict)
}

// ReadRecord parses the header of path and maps it onto a hierarchy record.
// Pixel data is never read.
func ReadRecord(path string, strict bool) (hierarchy.Record, error) {
	var (
		ds  dicom.Dataset
		err error
	)
	if strict {
		ds, err = dicom.ParseFile(path, nil, dicom.SkipPixelData())
	} else {
		ds, err = parseTolerant(path)
	}
	if err != nil {
		return hierarchy.Record{}, &ParseError{Path: path, Reason: "parse header", Err: err}
	}

	rec, err := recordFromDataset(ds)
	if err != nil {
		return hierarchy.Record{}, &ParseError{Path: path, Reason: "read attributes", Err: err}
	}
	rec.FilePath = path
	return rec, nil
}

// parseTolerant reads the dataset one element at a time and stops at the end
// of the file or at the first element that fails to decode. Elements decoded
// before the failure are kept, so a broken private tag or a cut pixel data
// value does not hide the identity attributes written before it.
func parseTolerant(path string) (dicom.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return dicom.Dataset{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return dicom.Dataset{}, err
	}

	p, err := dicom.NewParser(f, info.Size(), nil,
		dicom.SkipPixelData(),
		dicom.AllowMissingMetaElementGroupLength(),
		dicom.AllowUnknownSpecificCharacterSet(),
	)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("read file meta information: %w", err)
	}

	// the parser shares its metadata slice with its own dataset
	ds := dicom.Dataset{Elements: slices.Clone(p.GetMetadata().Elements)}
	var read int
	for {
		elem, err := p.Next()
		if err != nil {
			if read == 0 && !errors.Is(err, dicom.ErrorEndOfDICOM) {
				return dicom.Dataset{}, fmt.Errorf("%w: %v", ErrNoElements, err)
			}
			break
		}
		ds.Elements = append(ds.Elements, elem)
		read++
	}
	if read == 0 {
		return dicom.Dataset{}, ErrNoElements
	}
	return ds, nil
}

func recordFromDataset(ds dicom.Dataset) (hierarchy.Record, error) {
	var (
		rec hierarchy.Record
		err error
	)

	// identity keys
	rec.SOPInstanceUID = stringValue(ds, tag.SOPInstanceUID)
	rec.SeriesInstanceUID = stringValue(ds, tag.SeriesInstanceUID)
	rec.StudyInstanceUID = stringValue(ds, tag.StudyInstanceUID)
	rec.PatientID = stringValue(ds, tag.PatientID)
	if rec.PatientID == "" {
		rec.PatientID = hierarchy.AnonymousPatientID
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}

	if rec.InstanceNumber, err = intValue(ds, tag.InstanceNumber); err != nil {
		return rec, fmt.Errorf("InstanceNumber: %w", err)
	}
	if rec.ImagePosition, err = floatValues(ds, tag.ImagePositionPatient, 3); err != nil {
		return rec, fmt.Errorf("ImagePositionPatient: %w", err)
	}
	if rec.ImageOrientation, err = floatValues(ds, tag.ImageOrientationPatient, 6); err != nil {
		return rec, fmt.Errorf("ImageOrientationPatient: %w", err)
	}

	if rec.SeriesNumber, err = intValue(ds, tag.SeriesNumber); err != nil {
		return rec, fmt.Errorf("SeriesNumber: %w", err)
	}
	rec.Modality = stringValue(ds, tag.Modality)
	rec.SeriesDescription = stringValue(ds, tag.SeriesDescription)

	rec.StudyID = stringValue(ds, tag.StudyID)
	rec.StudyDate = stringValue(ds, tag.StudyDate)
	rec.StudyDescription = stringValue(ds, tag.StudyDescription)

	rec.PatientName = stringValue(ds, tag.PatientName)
	return rec, nil
}

// rawValues returns the element values as strings, or nil if the tag is absent or empty.
func rawValues(ds dicom.Dataset, t tag.Tag) []string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return nil
	}

	var out []string
	switch v := elem.Value.GetValue().(type) {
	case []string:
		for _, s := range v {
			// a single DS/IS string may still carry backslash-separated values
			out = append(out, strings.Split(s, `\`)...)
		}
	case []int:
		for _, i := range v {
			out = append(out, strconv.Itoa(i))
		}
	case []float64:
		for _, f := range v {
			out = append(out, strconv.FormatFloat(f, 'f', -1, 64))
		}
	default:
		return nil
	}

	for i := range out {
		out[i] = strings.Trim(out[i], " \x00")
	}
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	return out
}

func stringValue(ds dicom.Dataset, t tag.Tag) string {
	values := rawValues(ds, t)
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, `\`)
}

func intValue(ds dicom.Dataset, t tag.Tag) (*int, error) {
	values := rawValues(ds, t)
	if len(values) == 0 {
		return nil, nil
	}
	n, err := strconv.Atoi(values[0])
	if err != nil {
		// IS values are sometimes written as "3.0"
		f, ferr := strconv.ParseFloat(values[0], 64)
		if ferr != nil || f != float64(int(f)) {
			return nil, fmt.Errorf("not an integer: %q", values[0])
		}
		n = int(f)
	}
	return &n, nil
}

func floatValues(ds dicom.Dataset, t tag.Tag, arity int) ([]float64, error) {
	values := rawValues(ds, t)
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) != arity {
		return nil, fmt.Errorf("expected %d values, got %d", arity, len(values))
	}
	out := make([]float64, arity)
	for i, s := range values {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", s)
		}
		out[i] = f
	}
	return out, nil
}
