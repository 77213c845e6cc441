package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/mrsinham/dicomfolder/internal/scan"
)

// parseDepth maps a --depth value to the deepest level printed.
func parseDepth(s string) (hierarchy.Level, error) {
	switch strings.ToLower(s) {
	case "patient":
		return hierarchy.LevelPatient, nil
	case "study":
		return hierarchy.LevelStudy, nil
	case "series":
		return hierarchy.LevelSeries, nil
	case "", "image", "instance":
		return hierarchy.LevelInstance, nil
	}
	return 0, fmt.Errorf("invalid depth %q (valid: patient, study, series, image)", s)
}

// renderText prints one tree per patient, down to depth.
func renderText(w io.Writer, c *hierarchy.Collection, depth hierarchy.Level) error {
	for _, p := range c.Patients() {
		t := tree.Root(label(hierarchy.Node{Level: hierarchy.LevelPatient, Patient: p}))
		if depth > hierarchy.LevelPatient {
			for _, st := range p.Studies() {
				t.Child(studyTree(p, st, depth))
			}
		}
		if _, err := fmt.Fprintln(w, t.String()); err != nil {
			return err
		}
	}
	return nil
}

func studyTree(p *hierarchy.Patient, st *hierarchy.Study, depth hierarchy.Level) *tree.Tree {
	t := tree.Root(label(hierarchy.Node{Level: hierarchy.LevelStudy, Patient: p, Study: st}))
	if depth <= hierarchy.LevelStudy {
		return t
	}
	for _, se := range st.Series() {
		seTree := tree.Root(label(hierarchy.Node{Level: hierarchy.LevelSeries, Patient: p, Study: st, Series: se}))
		if depth > hierarchy.LevelSeries {
			for _, inst := range se.Instances() {
				seTree.Child(label(hierarchy.Node{Level: hierarchy.LevelInstance, Instance: inst}))
			}
		}
		t.Child(seTree)
	}
	return t
}

func label(n hierarchy.Node) string {
	parts := []string{n.Level.String(), n.Key()}
	switch n.Level {
	case hierarchy.LevelPatient:
		parts = appendNonEmpty(parts, n.Patient.PatientName)
	case hierarchy.LevelStudy:
		parts = appendNonEmpty(parts, n.Study.StudyID, n.Study.StudyDate, n.Study.StudyDescription)
	case hierarchy.LevelSeries:
		if n.Series.SeriesNumber != nil {
			parts = append(parts, fmt.Sprintf("#%d", *n.Series.SeriesNumber))
		}
		parts = appendNonEmpty(parts, n.Series.Modality, n.Series.SeriesDescription)
		parts = append(parts, fmt.Sprintf("(%d instances)", n.Series.InstanceCount()))
	case hierarchy.LevelInstance:
		if n.Instance.InstanceNumber != nil {
			parts = append(parts, fmt.Sprintf("#%d", *n.Instance.InstanceNumber))
		}
		parts = append(parts, n.Instance.FilePath)
	}
	return strings.Join(parts, " ")
}

func appendNonEmpty(parts []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return parts
}

// JSON views of the hierarchy. Absent optional attributes are omitted.
type (
	jsonOutput struct {
		Root        string           `json:"root"`
		Patients    []jsonPatient    `json:"patients"`
		Diagnostics []jsonDiagnostic `json:"diagnostics,omitempty"`
	}

	jsonPatient struct {
		PatientID   string      `json:"patient_id"`
		PatientName string      `json:"patient_name,omitempty"`
		Studies     []jsonStudy `json:"studies"`
	}

	jsonStudy struct {
		StudyInstanceUID string       `json:"study_instance_uid"`
		StudyID          string       `json:"study_id,omitempty"`
		StudyDate        string       `json:"study_date,omitempty"`
		StudyDescription string       `json:"study_description,omitempty"`
		Series           []jsonSeries `json:"series"`
	}

	jsonSeries struct {
		SeriesInstanceUID string         `json:"series_instance_uid"`
		SeriesNumber      *int           `json:"series_number,omitempty"`
		Modality          string         `json:"modality,omitempty"`
		SeriesDescription string         `json:"series_description,omitempty"`
		Instances         []jsonInstance `json:"instances"`
	}

	jsonInstance struct {
		SOPInstanceUID   string    `json:"sop_instance_uid"`
		InstanceNumber   *int      `json:"instance_number,omitempty"`
		ImagePosition    []float64 `json:"image_position,omitempty"`
		ImageOrientation []float64 `json:"image_orientation,omitempty"`
		FilePath         string    `json:"file_path"`
	}

	jsonDiagnostic struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}
)

// renderJSON writes the collection and the diagnostics of report as one JSON document.
func renderJSON(w io.Writer, c *hierarchy.Collection, report *scan.Report) error {
	out := jsonOutput{Root: report.Root, Patients: []jsonPatient{}}
	for _, p := range c.Patients() {
		jp := jsonPatient{PatientID: p.PatientID, PatientName: p.PatientName, Studies: []jsonStudy{}}
		for _, st := range p.Studies() {
			js := jsonStudy{
				StudyInstanceUID: st.StudyInstanceUID,
				StudyID:          st.StudyID,
				StudyDate:        st.StudyDate,
				StudyDescription: st.StudyDescription,
				Series:           []jsonSeries{},
			}
			for _, se := range st.Series() {
				jse := jsonSeries{
					SeriesInstanceUID: se.SeriesInstanceUID,
					SeriesNumber:      se.SeriesNumber,
					Modality:          se.Modality,
					SeriesDescription: se.SeriesDescription,
					Instances:         []jsonInstance{},
				}
				for _, inst := range se.Instances() {
					jse.Instances = append(jse.Instances, jsonInstance{
						SOPInstanceUID:   inst.SOPInstanceUID,
						InstanceNumber:   inst.InstanceNumber,
						ImagePosition:    inst.ImagePosition,
						ImageOrientation: inst.ImageOrientation,
						FilePath:         inst.FilePath,
					})
				}
				js.Series = append(js.Series, jse)
			}
			jp.Studies = append(jp.Studies, js)
		}
		out.Patients = append(out.Patients, jp)
	}
	for _, d := range report.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, jsonDiagnostic{Path: d.Path, Error: d.Err.Error()})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
