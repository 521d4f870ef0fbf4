package lrc

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	tagPattern       = regexp.MustCompile(`^\[[^\[]*?\]`)
	timestampPattern = regexp.MustCompile(`^\[(\d+(?::\d+){0,2}(?:\.\d+)?)\]$`)
	attrPattern      = regexp.MustCompile(`^\[([\p{L}\p{N}_]+):(.*)\]$`)
)

// Parse reads LRC text. Fragments that match no known tag are skipped; it
// never fails.
func Parse(raw string) *Document {
	doc := &Document{}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")

		var stamps []int64
		rest := line
		for strings.HasPrefix(rest, "[") {
			tag := tagPattern.FindString(rest)
			if tag == "" {
				break
			}
			if m := timestampPattern.FindStringSubmatch(tag); m != nil {
				ms, ok := parseTimestamp(m[1])
				if !ok {
					break
				}
				stamps = append(stamps, ms)
			} else if m := attrPattern.FindStringSubmatch(tag); m != nil {
				doc.Attrs.Set(strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
			} else {
				break
			}
			rest = rest[len(tag):]
		}

		text := strings.TrimSpace(rest)
		if text == "" {
			continue
		}
		for _, ms := range stamps {
			doc.Lines = append(doc.Lines, Line{TimestampMs: ms, Text: text})
		}
	}

	sortLines(doc.Lines)
	return doc
}

// parseTimestamp converts "h:m:s.frac", "m:s.frac" or "s.frac" to milliseconds.
// The rightmost group holds seconds; each group to its left is 60 times larger.
// Values that do not fit in an int64 are rejected.
func parseTimestamp(s string) (int64, bool) {
	groups := strings.Split(s, ":")

	last := groups[len(groups)-1]
	whole, frac, _ := strings.Cut(last, ".")
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || secs > (math.MaxInt64-999)/1000 {
		return 0, false
	}
	ms := secs*1000 + fractionMs(frac)

	// At most two groups precede the seconds, so factor itself stays small
	factor := int64(1000)
	for i := len(groups) - 2; i >= 0; i-- {
		n, err := strconv.ParseInt(groups[i], 10, 64)
		if err != nil {
			return 0, false
		}
		factor *= 60
		if n > (math.MaxInt64-ms)/factor {
			return 0, false
		}
		ms += n * factor
	}
	return ms, true
}

// fractionMs truncates a decimal fraction to whole milliseconds
func fractionMs(frac string) int64 {
	if len(frac) > 3 {
		frac = frac[:3]
	}
	for len(frac) < 3 {
		frac += "0"
	}
	n, _ := strconv.ParseInt(frac, 10, 64)
	return n
}
