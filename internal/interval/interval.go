package interval

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) span of time.
type Interval struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Of returns the interval covering d starting at start.
func Of(start time.Time, d time.Duration) Interval {
	return Interval{Start: start, End: start.Add(d)}
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two intervals share any instant.
// Touching intervals ([9,10) and [10,11)) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Set is a sorted list of disjoint, non-adjacent intervals.
// Build one with Normalize; the operations below preserve the invariant.
type Set []Interval

// Normalize sorts the input, drops empty intervals and merges anything
// overlapping or touching.
func Normalize(ivs ...Interval) Set {
	valid := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Valid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return Set{}
	}

	sort.Slice(valid, func(a, b int) bool {
		if valid[a].Start.Equal(valid[b].Start) {
			return valid[a].End.Before(valid[b].End)
		}
		return valid[a].Start.Before(valid[b].Start)
	})

	out := Set{valid[0]}
	for _, iv := range valid[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

func Union(a, b Set) Set {
	all := make([]Interval, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return Normalize(all...)
}

// Subtract removes every instant covered by b from a.
func Subtract(a, b Set) Set {
	a = Normalize(a...)
	b = Normalize(b...)

	out := Set{}
	j := 0
	for _, iv := range a {
		cur := iv
		for j < len(b) && !b[j].End.After(cur.Start) {
			j++
		}
		k := j
		for k < len(b) && b[k].Start.Before(cur.End) {
			if b[k].Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: b[k].Start})
			}
			if b[k].End.After(cur.Start) {
				cur.Start = b[k].End
			}
			if !cur.Valid() {
				break
			}
			k++
		}
		if cur.Valid() {
			out = append(out, cur)
		}
	}
	return out
}

func Intersect(a, b Set) Set {
	a = Normalize(a...)
	b = Normalize(b...)

	out := Set{}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := maxTime(a[i].Start, b[j].Start)
		end := minTime(a[i].End, b[j].End)
		if start.Before(end) {
			out = append(out, Interval{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// Covers reports whether iv fits entirely inside a single member of s.
func (s Set) Covers(iv Interval) bool {
	if !iv.Valid() {
		return false
	}
	idx := sort.Search(len(s), func(k int) bool { return s[k].End.After(iv.Start) })
	return idx < len(s) && s[idx].Contains(iv)
}

// Clip restricts s to window.
func (s Set) Clip(window Interval) Set {
	return Intersect(s, Set{window})
}

func (s Set) Overlapping(iv Interval) Set {
	out := Set{}
	for _, m := range s {
		if m.Overlaps(iv) {
			out = append(out, m)
		}
	}
	return out
}

func (s Set) TotalDuration() time.Duration {
	var total time.Duration
	for _, iv := range s {
		total += iv.Duration()
	}
	return total
}

func (s Set) Empty() bool {
	return len(s) == 0
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
