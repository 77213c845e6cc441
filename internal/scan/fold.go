package scan

import (
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
)

// FoldResult describes what folding one record changed.
type FoldResult struct {
	// Created is the highest level at which a new node was created.
	// LevelInstance means the record only appended an instance.
	Created hierarchy.Level
	// Duplicate is set when the series already held an instance with the same key.
	// The instance is appended anyway.
	Duplicate bool
	// Existing is the instance already holding the key when Duplicate is set.
	Existing *hierarchy.Instance
}

// Fold merges one record into c using find-or-create at each level. A new
// patient carries its study, series and instance with it and nothing else is
// looked up; the same holds for a new study or a new series. Attributes of
// existing nodes are never updated.
func Fold(c *hierarchy.Collection, rec hierarchy.Record) (FoldResult, error) {
	if err := rec.Validate(); err != nil {
		return FoldResult{}, err
	}

	patient, ok := c.FindPatient(rec.PatientID)
	if !ok {
		patient = rec.NewPatient()
		study := rec.NewStudy()
		series := rec.NewSeries()
		series.AddInstance(rec.NewInstance())
		study.AddSeries(series)
		patient.AddStudy(study)
		c.AddPatient(patient)
		return FoldResult{Created: hierarchy.LevelPatient}, nil
	}

	study, ok := patient.FindStudy(rec.StudyInstanceUID)
	if !ok {
		study = rec.NewStudy()
		series := rec.NewSeries()
		series.AddInstance(rec.NewInstance())
		study.AddSeries(series)
		patient.AddStudy(study)
		return FoldResult{Created: hierarchy.LevelStudy}, nil
	}

	series, ok := study.FindSeries(rec.SeriesInstanceUID)
	if !ok {
		series = rec.NewSeries()
		series.AddInstance(rec.NewInstance())
		study.AddSeries(series)
		return FoldResult{Created: hierarchy.LevelSeries}, nil
	}

	existing, dup := series.FindInstance(rec.SOPInstanceUID)
	series.AddInstance(rec.NewInstance())
	if !dup {
		existing = nil
	}
	return FoldResult{Created: hierarchy.LevelInstance, Duplicate: dup, Existing: existing}, nil
}
