package internaldefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundLabels(t *testing.T) {
	labels := BoundLabels()
	require.Len(t, labels, BucketCount)
	assert.Equal(t, "0.01", labels[0])
	assert.Equal(t, "1", labels[len(labels)-2])
	assert.Equal(t, "+Inf", labels[len(labels)-1])

	suffixes := BoundSuffixes()
	assert.Equal(t, "0_01", suffixes[0])
	assert.Equal(t, "inf", suffixes[len(suffixes)-1])
}

func TestBucketHelpers(t *testing.T) {
	norm := NormalizeBuckets([]uint64{1, 2})
	require.Len(t, norm, BucketCount)
	assert.Equal(t, uint64(0), norm[BucketCount-1])

	cum := CumulativeBuckets([]uint64{1, 2, 0, 3})
	assert.Equal(t, []uint64{1, 3, 3, 6}, cum)
}

func TestNamesAreUnique(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true}
	for _, d := range CounterDefs {
		assert.False(t, seen[d.Name], d.Name)
		seen[d.Name] = true
	}
	for _, d := range HistogramDefs {
		assert.False(t, seen[d.Name], d.Name)
		seen[d.Name] = true
	}
}
