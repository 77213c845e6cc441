// Package hierarchy models a scanned folder as a Patient → Study → Series → Instance tree.
//
// Children are kept in first-seen order and looked up by a linear scan of their
// identity key. A node's attributes are fixed by the record that created it.
package hierarchy

// AnonymousPatientID is used when a file carries no PatientID.
const AnonymousPatientID = "Anonymous"

// Level identifies the depth of a node in the tree.
type Level int

const (
	LevelPatient Level = iota
	LevelStudy
	LevelSeries
	LevelInstance
)

// String returns the DICOMDIR record type name for the level.
func (l Level) String() string {
	switch l {
	case LevelPatient:
		return "PATIENT"
	case LevelStudy:
		return "STUDY"
	case LevelSeries:
		return "SERIES"
	case LevelInstance:
		return "IMAGE"
	default:
		return "UNKNOWN"
	}
}

// Instance is a single image file (leaf node).
type Instance struct {
	SOPInstanceUID   string
	InstanceNumber   *int
	ImagePosition    []float64 // 3 values when present
	ImageOrientation []float64 // 6 values when present
	FilePath         string
}

// Key returns the SOPInstanceUID.
func (i *Instance) Key() string { return i.SOPInstanceUID }

// MatchesKey reports whether uid is this instance's SOPInstanceUID.
func (i *Instance) MatchesKey(uid string) bool { return i.SOPInstanceUID == uid }

// Equal reports whether both instances share the same SOPInstanceUID.
func (i *Instance) Equal(other *Instance) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.SOPInstanceUID == other.SOPInstanceUID
}

// Series groups the instances sharing a SeriesInstanceUID.
type Series struct {
	SeriesInstanceUID string
	SeriesNumber      *int
	Modality          string
	SeriesDescription string

	instances []*Instance
}

// Key returns the SeriesInstanceUID.
func (s *Series) Key() string { return s.SeriesInstanceUID }

// MatchesKey reports whether uid is this series' SeriesInstanceUID.
func (s *Series) MatchesKey(uid string) bool { return s.SeriesInstanceUID == uid }

// Equal reports whether both series share the same SeriesInstanceUID.
func (s *Series) Equal(other *Series) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.SeriesInstanceUID == other.SeriesInstanceUID
}

// AddInstance appends an instance. Duplicate SOPInstanceUIDs are kept.
func (s *Series) AddInstance(inst *Instance) {
	s.instances = append(s.instances, inst)
}

// FindInstance returns the first instance matching uid.
func (s *Series) FindInstance(uid string) (*Instance, bool) {
	for _, inst := range s.instances {
		if inst.MatchesKey(uid) {
			return inst, true
		}
	}
	return nil, false
}

// Instances returns the instances in insertion order.
func (s *Series) Instances() []*Instance {
	return append([]*Instance(nil), s.instances...)
}

// InstanceCount returns the number of instances in the series.
func (s *Series) InstanceCount() int { return len(s.instances) }

// FilePaths returns the source file of every instance, in insertion order.
func (s *Series) FilePaths() []string {
	paths := make([]string, len(s.instances))
	for i, inst := range s.instances {
		paths[i] = inst.FilePath
	}
	return paths
}

// Study groups the series sharing a StudyInstanceUID.
type Study struct {
	StudyInstanceUID string
	StudyID          string
	StudyDate        string
	StudyDescription string

	series []*Series
}

// Key returns the StudyInstanceUID.
func (s *Study) Key() string { return s.StudyInstanceUID }

// MatchesKey reports whether uid is this study's StudyInstanceUID.
func (s *Study) MatchesKey(uid string) bool { return s.StudyInstanceUID == uid }

// Equal reports whether both studies share the same StudyInstanceUID.
func (s *Study) Equal(other *Study) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.StudyInstanceUID == other.StudyInstanceUID
}

// AddSeries appends a series. The caller checks uniqueness with FindSeries first.
func (s *Study) AddSeries(series *Series) {
	s.series = append(s.series, series)
}

// FindSeries returns the first series matching uid.
func (s *Study) FindSeries(uid string) (*Series, bool) {
	for _, series := range s.series {
		if series.MatchesKey(uid) {
			return series, true
		}
	}
	return nil, false
}

// Series returns the series in insertion order.
func (s *Study) Series() []*Series {
	return append([]*Series(nil), s.series...)
}

// Patient groups the studies sharing a PatientID.
type Patient struct {
	PatientID   string
	PatientName string

	studies []*Study
}

// Key returns the PatientID.
func (p *Patient) Key() string { return p.PatientID }

// MatchesKey reports whether id is this patient's PatientID.
func (p *Patient) MatchesKey(id string) bool { return p.PatientID == id }

// Equal reports whether both patients share the same PatientID.
func (p *Patient) Equal(other *Patient) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.PatientID == other.PatientID
}

// AddStudy appends a study. The caller checks uniqueness with FindStudy first.
func (p *Patient) AddStudy(study *Study) {
	p.studies = append(p.studies, study)
}

// FindStudy returns the first study matching uid.
func (p *Patient) FindStudy(uid string) (*Study, bool) {
	for _, study := range p.studies {
		if study.MatchesKey(uid) {
			return study, true
		}
	}
	return nil, false
}

// Studies returns the studies in insertion order.
func (p *Patient) Studies() []*Study {
	return append([]*Study(nil), p.studies...)
}
