package dicom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Attribute is one DICOM attribute read into the hierarchy, with the level
// whose node it describes.
type Attribute struct {
	Name  string
	Tag   tag.Tag
	Level hierarchy.Level
	// Key marks the identity key of its level.
	Key bool
}

// attributes maps lowercase attribute names to their Attribute.
var attributes = map[string]Attribute{
	// Patient level
	"patientid":   {Name: "PatientID", Tag: tag.PatientID, Level: hierarchy.LevelPatient, Key: true},
	"patientname": {Name: "PatientName", Tag: tag.PatientName, Level: hierarchy.LevelPatient},

	// Study level
	"studyinstanceuid": {Name: "StudyInstanceUID", Tag: tag.StudyInstanceUID, Level: hierarchy.LevelStudy, Key: true},
	"studyid":          {Name: "StudyID", Tag: tag.StudyID, Level: hierarchy.LevelStudy},
	"studydate":        {Name: "StudyDate", Tag: tag.StudyDate, Level: hierarchy.LevelStudy},
	"studydescription": {Name: "StudyDescription", Tag: tag.StudyDescription, Level: hierarchy.LevelStudy},

	// Series level
	"seriesinstanceuid": {Name: "SeriesInstanceUID", Tag: tag.SeriesInstanceUID, Level: hierarchy.LevelSeries, Key: true},
	"seriesnumber":      {Name: "SeriesNumber", Tag: tag.SeriesNumber, Level: hierarchy.LevelSeries},
	"modality":          {Name: "Modality", Tag: tag.Modality, Level: hierarchy.LevelSeries},
	"seriesdescription": {Name: "SeriesDescription", Tag: tag.SeriesDescription, Level: hierarchy.LevelSeries},

	// Instance level
	"sopinstanceuid":          {Name: "SOPInstanceUID", Tag: tag.SOPInstanceUID, Level: hierarchy.LevelInstance, Key: true},
	"instancenumber":          {Name: "InstanceNumber", Tag: tag.InstanceNumber, Level: hierarchy.LevelInstance},
	"imagepositionpatient":    {Name: "ImagePositionPatient", Tag: tag.ImagePositionPatient, Level: hierarchy.LevelInstance},
	"imageorientationpatient": {Name: "ImageOrientationPatient", Tag: tag.ImageOrientationPatient, Level: hierarchy.LevelInstance},
}

// Attributes returns every known attribute ordered by level, then name.
func Attributes() []Attribute {
	out := make([]Attribute, 0, len(attributes))
	for _, a := range attributes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// LookupAttribute returns the attribute with the given name, ignoring case.
// An unknown name yields an error suggesting the closest known name.
func LookupAttribute(name string) (Attribute, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if a, ok := attributes[normalized]; ok {
		return a, nil
	}

	if suggestion := closestAttributeName(normalized); suggestion != "" {
		return Attribute{}, fmt.Errorf("unknown attribute %q, did you mean %q?", name, suggestion)
	}
	return Attribute{}, fmt.Errorf("unknown attribute %q", name)
}

// TagOverride forces the value of one attribute in every forged file.
type TagOverride struct {
	Attribute Attribute
	Value     string
}

// ParseTagOverrides parses "Name=Value" flags. An empty value removes the
// attribute from the forged files.
func ParseTagOverrides(flags []string) ([]TagOverride, error) {
	var out []TagOverride
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid tag %q, expected Name=Value", f)
		}
		a, err := LookupAttribute(name)
		if err != nil {
			return nil, err
		}
		out = append(out, TagOverride{Attribute: a, Value: strings.TrimSpace(value)})
	}
	return out, nil
}

// closestAttributeName returns the known name at the smallest Levenshtein
// distance from input, or "" when nothing is within 5 edits.
func closestAttributeName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for key, a := range attributes {
		d := levenshteinDistance(input, key)
		if d < bestDistance || (d == bestDistance && a.Name < bestMatch) {
			bestDistance = d
			bestMatch = a.Name
		}
	}
	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
