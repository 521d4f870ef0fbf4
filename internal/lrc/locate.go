package lrc

import "sort"

// Locate returns the index of the last line starting at or before posMs and
// the index after it. Both are None when posMs precedes the first line or
// lines is empty. Lines sharing a timestamp resolve to the last of them.
func Locate(lines []Line, posMs int64) (active, next int) {
	i := sort.Search(len(lines), func(i int) bool {
		return lines[i].TimestampMs > posMs
	})
	active = i - 1
	if active < 0 {
		return None, None
	}
	if active+1 < len(lines) {
		return active, active + 1
	}
	return active, None
}
