package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func iv(h1, m1, h2, m2 int) Interval {
	return New(at(h1, m1), at(h2, m2))
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := iv(10, 0, 10, 30)
	assert.True(t, a.Overlaps(iv(10, 15, 11, 0)))
	assert.True(t, a.Overlaps(iv(9, 0, 12, 0)))
	assert.False(t, a.Overlaps(iv(10, 30, 11, 0)))
	assert.False(t, a.Overlaps(iv(9, 30, 10, 0)))
}

func TestNormalizeMergesAndSorts(t *testing.T) {
	got := Normalize(
		iv(13, 0, 14, 0),
		iv(9, 0, 10, 0),
		iv(9, 30, 11, 0),
		iv(11, 0, 12, 0),
		iv(15, 0, 15, 0),
	)
	want := Set{iv(9, 0, 12, 0), iv(13, 0, 14, 0)}
	assert.Equal(t, want, got)
	assert.Equal(t, got, Normalize(got...))
}

func TestSubtract(t *testing.T) {
	open := Normalize(iv(9, 0, 17, 0))

	tests := []struct {
		name string
		sub  Set
		want Set
	}{
		{"nothing", Set{}, Set{iv(9, 0, 17, 0)}},
		{"middle", Set{iv(12, 0, 13, 0)}, Set{iv(9, 0, 12, 0), iv(13, 0, 17, 0)}},
		{"edges", Set{iv(8, 0, 9, 30), iv(16, 30, 18, 0)}, Set{iv(9, 30, 16, 30)}},
		{"everything", Set{iv(0, 0, 23, 0)}, Set{}},
		{"several", Set{iv(10, 0, 10, 30), iv(10, 30, 11, 0), iv(14, 0, 15, 0)}, Set{iv(9, 0, 10, 0), iv(11, 0, 14, 0), iv(15, 0, 17, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subtract(open, tt.sub))
		})
	}
}

func TestSubtractSpanningMultipleMembers(t *testing.T) {
	a := Normalize(iv(9, 0, 12, 0), iv(13, 0, 17, 0))
	b := Normalize(iv(11, 0, 14, 0))
	assert.Equal(t, Set{iv(9, 0, 11, 0), iv(14, 0, 17, 0)}, Subtract(a, b))
}

func TestUnionAndIntersect(t *testing.T) {
	a := Normalize(iv(9, 0, 12, 0))
	b := Normalize(iv(11, 0, 13, 0), iv(15, 0, 16, 0))

	assert.Equal(t, Set{iv(9, 0, 13, 0), iv(15, 0, 16, 0)}, Union(a, b))
	assert.Equal(t, Set{iv(11, 0, 12, 0)}, Intersect(a, b))
}

func TestCovers(t *testing.T) {
	s := Normalize(iv(9, 0, 12, 0), iv(13, 0, 17, 0))

	assert.True(t, s.Covers(iv(9, 0, 9, 30)))
	assert.True(t, s.Covers(iv(16, 30, 17, 0)))
	assert.False(t, s.Covers(iv(11, 30, 13, 30)))
	assert.False(t, s.Covers(iv(17, 0, 17, 30)))
	assert.False(t, s.Covers(iv(10, 0, 10, 0)))
}

func TestClipAndTotal(t *testing.T) {
	s := Normalize(iv(8, 0, 12, 0), iv(13, 0, 20, 0))
	clipped := s.Clip(iv(9, 0, 17, 0))

	require.Len(t, clipped, 2)
	assert.Equal(t, 7*time.Hour, clipped.TotalDuration())
	assert.Len(t, clipped.Overlapping(iv(11, 0, 11, 30)), 1)
}
