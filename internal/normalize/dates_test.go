package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"feedsync/internal/domain"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2023, 5, 5, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
	}{
		{"rfc1123z", "Fri, 05 May 2023 12:30:00 +0000"},
		{"rfc1123", "Fri, 05 May 2023 12:30:00 UTC"},
		{"gmt", "Fri, 05 May 2023 12:30:00 GMT"},
		{"est", "Fri, 05 May 2023 07:30:00 EST"},
		{"edt", "Fri, 05 May 2023 08:30:00 EDT"},
		{"pst", "Fri, 05 May 2023 04:30:00 PST"},
		{"cest", "Fri, 05 May 2023 14:30:00 CEST"},
		{"rfc822 est", "05 May 23 07:30 EST"},
		{"single digit day", "Fri, 5 May 2023 12:30:00 +0000"},
		{"numeric offset", "Fri, 05 May 2023 07:30:00 -0500"},
		{"rfc3339", "2023-05-05T12:30:00Z"},
		{"padded", "  2023-05-05T12:30:00Z  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.in)
			assert.True(t, want.Equal(got), got.String())
		})
	}

	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("yesterday").IsZero())
}

func TestFixZone(t *testing.T) {
	// Same wall clock as time.Parse yields for an abbreviation it cannot resolve.
	parsed := time.Date(2023, 1, 2, 10, 0, 0, 0, time.FixedZone("EST", 0))

	fixed := FixZone(parsed)

	assert.True(t, time.Date(2023, 1, 2, 15, 0, 0, 0, time.UTC).Equal(fixed), fixed.String())

	numeric := time.Date(2023, 1, 2, 10, 0, 0, 0, time.FixedZone("", -5*60*60))
	assert.Equal(t, numeric, FixZone(numeric))

	unknown := time.Date(2023, 1, 2, 10, 0, 0, 0, time.FixedZone("XYZ", 0))
	assert.Equal(t, unknown, FixZone(unknown))
}

func TestPublishedAt(t *testing.T) {
	parsed := time.Date(2023, 1, 2, 10, 0, 0, 0, time.FixedZone("EST", -5*60*60))

	tests := []struct {
		name  string
		entry *domain.Entry
		want  time.Time
	}{
		{"nil entry", nil, time.Time{}},
		{"no date", &domain.Entry{}, time.Time{}},
		{"unparsable string", &domain.Entry{PubDate: ptr("someday")}, time.Time{}},
		{
			"parsed time wins",
			&domain.Entry{PubDate: ptr("garbage"), PublishedAt: &parsed},
			time.Date(2023, 1, 2, 15, 0, 0, 0, time.UTC),
		},
		{
			"string fallback",
			&domain.Entry{PubDate: ptr("Mon, 02 Jan 2023 10:00:00 EST")},
			time.Date(2023, 1, 2, 15, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublishedAt(tt.entry))
		})
	}
}
