package hierarchy

// Collection is the root of one scan. It holds every patient found in the folder.
type Collection struct {
	patients []*Patient
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// AddPatient appends a patient. The caller checks uniqueness with FindPatient first.
func (c *Collection) AddPatient(p *Patient) {
	c.patients = append(c.patients, p)
}

// FindPatient returns the first patient matching id.
func (c *Collection) FindPatient(id string) (*Patient, bool) {
	for _, p := range c.patients {
		if p.MatchesKey(id) {
			return p, true
		}
	}
	return nil, false
}

// Patients returns the patients in insertion order.
func (c *Collection) Patients() []*Patient {
	return append([]*Patient(nil), c.patients...)
}

// Len returns the number of patients.
func (c *Collection) Len() int { return len(c.patients) }

// SeriesRef locates a series together with its ancestors.
type SeriesRef struct {
	Patient *Patient
	Study   *Study
	Series  *Series
}

// FindSeries searches every patient and study for the first series matching uid.
func (c *Collection) FindSeries(uid string) (SeriesRef, bool) {
	for _, p := range c.patients {
		for _, st := range p.studies {
			if se, ok := st.FindSeries(uid); ok {
				return SeriesRef{Patient: p, Study: st, Series: se}, true
			}
		}
	}
	return SeriesRef{}, false
}

// Node is one visited element of the tree. Exactly one of the pointers matching
// Level is set; the ancestors are set as well.
type Node struct {
	Level    Level
	Patient  *Patient
	Study    *Study
	Series   *Series
	Instance *Instance
}

// Key returns the identity key of the node at its level.
func (n Node) Key() string {
	switch n.Level {
	case LevelPatient:
		return n.Patient.Key()
	case LevelStudy:
		return n.Study.Key()
	case LevelSeries:
		return n.Series.Key()
	case LevelInstance:
		return n.Instance.Key()
	}
	return ""
}

// Walk visits every node depth-first in insertion order. Returning false from
// fn skips the node's children.
func (c *Collection) Walk(fn func(Node) bool) {
	for _, p := range c.patients {
		if !fn(Node{Level: LevelPatient, Patient: p}) {
			continue
		}
		for _, st := range p.studies {
			if !fn(Node{Level: LevelStudy, Patient: p, Study: st}) {
				continue
			}
			for _, se := range st.series {
				if !fn(Node{Level: LevelSeries, Patient: p, Study: st, Series: se}) {
					continue
				}
				for _, inst := range se.instances {
					fn(Node{Level: LevelInstance, Patient: p, Study: st, Series: se, Instance: inst})
				}
			}
		}
	}
}

// Stats holds node counts per level.
type Stats struct {
	Patients  int
	Studies   int
	Series    int
	Instances int
}

// Stats counts the nodes of the collection.
func (c *Collection) Stats() Stats {
	var s Stats
	c.Walk(func(n Node) bool {
		switch n.Level {
		case LevelPatient:
			s.Patients++
		case LevelStudy:
			s.Studies++
		case LevelSeries:
			s.Series++
		case LevelInstance:
			s.Instances++
		}
		return true
	})
	return s
}
