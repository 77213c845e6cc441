package main

import (
	"fmt"
	"strings"

	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/mrsinham/dicomfolder/internal/scan"
	"github.com/xuri/excelize/v2"
)

const (
	instancesSheet = "Instances"
	skippedSheet   = "Skipped"
)

var instanceHeaders = []string{
	"Patient ID", "Patient Name",
	"Study Instance UID", "Study ID", "Study Date", "Study Description",
	"Series Instance UID", "Series Number", "Modality", "Series Description",
	"SOP Instance UID", "Instance Number", "Image Position", "File",
}

// writeInventory saves one row per instance, in hierarchy order, and one row
// per skipped file to an xlsx workbook at path.
func writeInventory(path string, c *hierarchy.Collection, report *scan.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(instancesSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if _, err := f.NewSheet(skippedSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, instancesSheet, 1, toAny(instanceHeaders), headerStyle); err != nil {
		return err
	}
	row := 2
	for _, p := range c.Patients() {
		for _, st := range p.Studies() {
			for _, se := range st.Series() {
				for _, inst := range se.Instances() {
					values := []any{
						p.PatientID, p.PatientName,
						st.StudyInstanceUID, st.StudyID, st.StudyDate, st.StudyDescription,
						se.SeriesInstanceUID, intOrBlank(se.SeriesNumber), se.Modality, se.SeriesDescription,
						inst.SOPInstanceUID, intOrBlank(inst.InstanceNumber), joinFloats(inst.ImagePosition), inst.FilePath,
					}
					if err := writeRow(f, instancesSheet, row, values, 0); err != nil {
						return err
					}
					row++
				}
			}
		}
	}

	if err := writeRow(f, skippedSheet, 1, []any{"File", "Reason"}, headerStyle); err != nil {
		return err
	}
	for i, d := range report.Diagnostics {
		if err := writeRow(f, skippedSheet, i+2, []any{d.Path, d.Err.Error()}, 0); err != nil {
			return err
		}
	}

	if err := f.SetPanes(instancesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// writeRow sets values from column A of row. A non-zero style is applied to each cell.
func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
		}
		if style != 0 {
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return fmt.Errorf("set style %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func intOrBlank(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, "\\")
}
