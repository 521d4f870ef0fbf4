package lrc

import (
	"fmt"
	"strings"
)

// Format serializes a document: attribute tags first, then one
// [mm:ss.xx]text line per lyric line in timestamp order.
func Format(doc *Document) string {
	if doc == nil {
		return ""
	}

	parts := make([]string, 0, doc.Attrs.Len()+len(doc.Lines))
	for _, k := range doc.Attrs.keys {
		parts = append(parts, fmt.Sprintf("[%s:%s]", k, doc.Attrs.values[k]))
	}
	for _, l := range doc.Lines {
		parts = append(parts, FormatTimestamp(l.TimestampMs)+l.Text)
	}
	return strings.Join(parts, "\n")
}

// FormatTimestamp renders milliseconds as a [mm:ss.xx] tag. Milliseconds
// below a centisecond are truncated. Minutes are not wrapped into hours.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	cs := (ms % 60000) / 10
	return fmt.Sprintf("[%02d:%02d.%02d]", ms/60000, cs/100, cs%100)
}
