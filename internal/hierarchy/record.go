package hierarchy

import (
	"errors"
	"fmt"
)

// ErrMissingKey is returned by Record.Validate when an identity key is empty.
var ErrMissingKey = errors.New("missing identity key")

// Record is the flat set of attributes read from one file.
type Record struct {
	FilePath string

	// Instance
	SOPInstanceUID   string
	InstanceNumber   *int
	ImagePosition    []float64
	ImageOrientation []float64

	// Series
	SeriesInstanceUID string
	SeriesNumber      *int
	Modality          string
	SeriesDescription string

	// Study
	StudyInstanceUID string
	StudyID          string
	StudyDate        string
	StudyDescription string

	// Patient
	PatientID   string
	PatientName string
}

// Validate checks that the record carries every identity key needed to fold it.
func (r Record) Validate() error {
	switch {
	case r.PatientID == "":
		return fmt.Errorf("%w: PatientID", ErrMissingKey)
	case r.StudyInstanceUID == "":
		return fmt.Errorf("%w: StudyInstanceUID", ErrMissingKey)
	case r.SeriesInstanceUID == "":
		return fmt.Errorf("%w: SeriesInstanceUID", ErrMissingKey)
	case r.SOPInstanceUID == "":
		return fmt.Errorf("%w: SOPInstanceUID", ErrMissingKey)
	}
	return nil
}

// NewPatient builds a childless patient from the record.
func (r Record) NewPatient() *Patient {
	return &Patient{PatientID: r.PatientID, PatientName: r.PatientName}
}

// NewStudy builds a childless study from the record.
func (r Record) NewStudy() *Study {
	return &Study{
		StudyInstanceUID: r.StudyInstanceUID,
		StudyID:          r.StudyID,
		StudyDate:        r.StudyDate,
		StudyDescription: r.StudyDescription,
	}
}

// NewSeries builds a childless series from the record.
func (r Record) NewSeries() *Series {
	return &Series{
		SeriesInstanceUID: r.SeriesInstanceUID,
		SeriesNumber:      r.SeriesNumber,
		Modality:          r.Modality,
		SeriesDescription: r.SeriesDescription,
	}
}

// NewInstance builds the instance leaf from the record.
func (r Record) NewInstance() *Instance {
	return &Instance{
		SOPInstanceUID:   r.SOPInstanceUID,
		InstanceNumber:   r.InstanceNumber,
		ImagePosition:    r.ImagePosition,
		ImageOrientation: r.ImageOrientation,
		FilePath:         r.FilePath,
	}
}
