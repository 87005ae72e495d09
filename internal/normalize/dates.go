package normalize

import (
	"strings"
	"time"

	"feedsync/internal/domain"
)

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

const hour = 60 * 60

// zoneOffsets holds the zone abbreviations seen in feed dates. time.Parse
// gives an abbreviation it does not know from the local zone an offset of
// zero.
var zoneOffsets = map[string]int{
	"GMT":  0,
	"UTC":  0,
	"EST":  -5 * hour,
	"EDT":  -4 * hour,
	"CST":  -6 * hour,
	"CDT":  -5 * hour,
	"MST":  -7 * hour,
	"MDT":  -6 * hour,
	"PST":  -8 * hour,
	"PDT":  -7 * hour,
	"AKST": -9 * hour,
	"AKDT": -8 * hour,
	"HST":  -10 * hour,
	"BST":  1 * hour,
	"CET":  1 * hour,
	"CEST": 2 * hour,
	"EET":  2 * hour,
	"EEST": 3 * hour,
	"MSK":  3 * hour,
	"JST":  9 * hour,
	"KST":  9 * hour,
	"AEST": 10 * hour,
	"AEDT": 11 * hour,
	"NZST": 12 * hour,
	"NZDT": 13 * hour,
}

// ParseDate parses the date formats found in RSS and Atom documents. The
// zero time is returned for empty or unrecognized input, which sorts it as
// the oldest.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "MST") {
			t = FixZone(t)
		}
		return t
	}
	return time.Time{}
}

// FixZone gives t the real offset of its zone abbreviation when Go parsed
// the abbreviation with a made-up one. Other times are returned unchanged.
func FixZone(t time.Time) time.Time {
	name, offset := t.Zone()
	want, ok := zoneOffsets[name]
	if !ok || want == offset {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, want))
}

// PublishedAt returns the instant an entry was published: the parsed time
// the document parser supplied, else PubDate parsed here. The result is in
// UTC, or zero when neither is available.
func PublishedAt(e *domain.Entry) time.Time {
	if e == nil {
		return time.Time{}
	}
	if e.PublishedAt != nil && !e.PublishedAt.IsZero() {
		return FixZone(*e.PublishedAt).UTC()
	}
	t := ParseDate(str(e.PubDate))
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
