package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Metrics(t *testing.T) {
	root, x := fakeFolder(t, map[string]*hierarchy.Record{
		"a.dcm":      rec("P1", "S1", "SE1", "I1"),
		"b.dcm":      rec("P1", "S1", "SE1", "I2"),
		"c.dcm":      rec("P1", "S1", "SE1", "I2"),
		"broken.dcm": nil,
		"readme.txt": nil,
	})

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	_, report, err := BuildHierarchy(root, WithExtractor(x), WithMetrics(m))
	require.NoError(t, err)
	require.Equal(t, 1, report.Duplicates)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(outcomeFolded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(outcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(outcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(outcomeIgnored)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesCreated.WithLabelValues("PATIENT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesCreated.WithLabelValues("STUDY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesCreated.WithLabelValues("SERIES")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NodesCreated.WithLabelValues("IMAGE")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LastInstances))

	_, _, err = BuildHierarchy(filepath.Join(root, "missing"), WithMetrics(m))
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LastInstances))
}

func TestBuild_NilMetrics(t *testing.T) {
	root, x := fakeFolder(t, map[string]*hierarchy.Record{
		"a.dcm": rec("P1", "S1", "SE1", "I1"),
	})
	_, report, err := BuildHierarchy(root, WithExtractor(x), WithMetrics(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Folded)
}

func TestBuild_DuplicateConflict(t *testing.T) {
	root, x := fakeFolder(t, map[string]*hierarchy.Record{
		"a.dcm": rec("P1", "S1", "SE1", "I1"),
		"b.dcm": rec("P1", "S1", "SE1", "I1"),
		"c.dcm": rec("P1", "S1", "SE1", "I1"),
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.dcm"), []byte("other content"), 0644))

	c, report, err := BuildHierarchy(root, WithExtractor(x))
	require.NoError(t, err)

	// b.dcm is an identical copy of a.dcm, c.dcm is not
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 3, c.Stats().Instances)
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	d := filepath.Join(dir, "d")
	require.NoError(t, os.WriteFile(a, []byte("DICM"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("DICM"), 0644))
	require.NoError(t, os.WriteFile(d, []byte("DICN"), 0644))

	same, err := sameContent(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = sameContent(a, d)
	require.NoError(t, err)
	assert.False(t, same)

	_, err = sameContent(a, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
