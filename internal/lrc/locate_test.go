package lrc

import "testing"

func TestLocate(t *testing.T) {
	lines := Parse("[ti:Test]\n[00:01.00]A\n[00:05.50]B\n[00:10.00]C\n").Lines

	tests := []struct {
		name       string
		lines      []Line
		pos        int64
		wantActive int
		wantNext   int
	}{
		{"between lines", lines, 6000, 1, 2},
		{"before first line", lines, 500, None, None},
		{"after last line", lines, 999999, 2, None},
		{"exactly on first", lines, 1000, 0, 1},
		{"exactly on middle", lines, 5500, 1, 2},
		{"one before boundary", lines, 5499, 0, 1},
		{"empty list", nil, 1000, None, None},
		{"negative position", lines, -10, None, None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, next := Locate(tt.lines, tt.pos)
			if active != tt.wantActive || next != tt.wantNext {
				t.Errorf("Locate(%d) = (%d, %d), want (%d, %d)", tt.pos, active, next, tt.wantActive, tt.wantNext)
			}
		})
	}
}

func TestLocateDuplicateTimestamps(t *testing.T) {
	lines := Parse("[00:01.00]A\n[00:02.00]B\n[00:02.00]C\n[00:03.00]D").Lines

	active, next := Locate(lines, 2000)
	if active != 2 || next != 3 {
		t.Errorf("Locate(2000) = (%d, %d), want (2, 3)", active, next)
	}
}

func TestLocateMatchesLinearScan(t *testing.T) {
	lines := Parse("[00:01.00]a\n[00:01.00]b\n[00:02.50]c\n[00:04.00]d\n[00:04.00]e\n[00:09.99]f").Lines

	linear := func(pos int64) int {
		idx := None
		for i, l := range lines {
			if l.TimestampMs > pos {
				break
			}
			idx = i
		}
		return idx
	}

	prev := None
	for pos := int64(-100); pos <= 11000; pos += 10 {
		active, _ := Locate(lines, pos)
		if want := linear(pos); active != want {
			t.Fatalf("Locate(%d) = %d, linear scan = %d", pos, active, want)
		}
		if active < prev {
			t.Fatalf("active index went backwards at %d: %d -> %d", pos, prev, active)
		}
		prev = active
	}
}
