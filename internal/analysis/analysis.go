// Package analysis runs a placeholder analysis over the instances of a series
// and reports its progress.
package analysis

import (
	"iter"

	"github.com/mrsinham/dicomfolder/internal/hierarchy"
)

// Progress is one step of a run.
type Progress struct {
	Step  int // 1-based
	Total int
	// Instance is the instance processed at this step, nil when the series is empty.
	Instance *hierarchy.Instance
}

// Done reports whether this is the last step.
func (p Progress) Done() bool { return p.Step >= p.Total }

// Percent returns the completion ratio in [0, 1].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Step) / float64(p.Total)
}

// Run yields steps progress values for series. With steps <= 0 there is one
// step per instance. The sequence is finite and can be stopped early.
func Run(series *hierarchy.Series, steps int) iter.Seq[Progress] {
	instances := series.Instances()
	if steps <= 0 {
		steps = len(instances)
	}

	return func(yield func(Progress) bool) {
		for step := 1; step <= steps; step++ {
			p := Progress{Step: step, Total: steps}
			if len(instances) > 0 {
				p.Instance = instances[(step-1)*len(instances)/steps]
			}
			if !yield(p) {
				return
			}
		}
	}
}
