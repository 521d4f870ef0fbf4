// Package lrc parses and serializes LRC-style timestamped lyrics and maps a
// playback position to the active lyric line.
package lrc

import (
	"math"
	"sort"
)

// None marks an absent line index.
const None = -1

// Line is a single timestamped lyric line
type Line struct {
	TimestampMs int64  // Start time in milliseconds, never negative
	Text        string // Non-empty lyric text
	Seq         int    // Position after sorting, for display identity only
}

// Attributes holds the document's [key:value] tags.
// Keys keep the order in which they were first seen; the last value wins.
type Attributes struct {
	keys   []string
	values map[string]string
}

// Set stores a value, keeping the key's original position if it exists
func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value for key
func (a *Attributes) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Keys returns the keys in iteration order
func (a *Attributes) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Len returns the number of attributes
func (a *Attributes) Len() int {
	return len(a.keys)
}

// Map returns a copy of the attributes as a plain map
func (a *Attributes) Map() map[string]string {
	out := make(map[string]string, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

func (a *Attributes) clone() Attributes {
	c := Attributes{}
	for _, k := range a.keys {
		c.Set(k, a.values[k])
	}
	return c
}

// Document is a parsed lyric file. Lines are always sorted by timestamp.
type Document struct {
	Attrs Attributes
	Lines []Line
}

// Empty reports whether the document has no timed lines
func (d *Document) Empty() bool {
	return d == nil || len(d.Lines) == 0
}

// Shift returns a copy of the document with every timestamp moved by deltaMs.
// Timestamps are clamped at zero and the lines re-sorted.
func (d *Document) Shift(deltaMs int64) *Document {
	out := &Document{
		Attrs: d.Attrs.clone(),
		Lines: make([]Line, len(d.Lines)),
	}
	for i, l := range d.Lines {
		ts := l.TimestampMs + deltaMs
		switch {
		case deltaMs > 0 && l.TimestampMs > math.MaxInt64-deltaMs:
			ts = math.MaxInt64
		case ts < 0:
			ts = 0
		}
		out.Lines[i] = Line{TimestampMs: ts, Text: l.Text}
	}
	sortLines(out.Lines)
	return out
}

// sortLines stable-sorts by timestamp and reassigns sequence ids
func sortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].TimestampMs < lines[j].TimestampMs
	})
	for i := range lines {
		lines[i].Seq = i
	}
}
