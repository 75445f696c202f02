package listing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want *string
	}{
		{"relative path", "https://www.indeed.com", "/rc/clk?jk=abc", ptr("https://www.indeed.com/rc/clk?jk=abc")},
		{"relative without slash", "https://www.glassdoor.com/Job/", "partner/jobListing.htm?id=1", ptr("https://www.glassdoor.com/Job/partner/jobListing.htm?id=1")},
		{"absolute unchanged", "https://www.indeed.com", "https://example.com/jobs/1", ptr("https://example.com/jobs/1")},
		{"protocol relative", "https://www.linkedin.com", "//www.linkedin.com/jobs/view/42", ptr("https://www.linkedin.com/jobs/view/42")},
		{"empty", "https://www.indeed.com", "  ", nil},
		{"javascript scheme", "https://www.indeed.com", "javascript:void(0)", nil},
		{"relative with bad base", "", "/jobs/1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveURL(tt.base, tt.ref)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestText(t *testing.T) {
	assert.Nil(t, Text(""))
	assert.Nil(t, Text(" \n\t "))

	got := Text("  Build\n  data\tpipelines  ")
	require.NotNil(t, got)
	assert.Equal(t, "Build data pipelines", *got)

	// NFKC folds compatibility characters such as the "ﬁ" ligature.
	got = Text("Sciﬁ Intern")
	require.NotNil(t, got)
	assert.Equal(t, "Scifi Intern", *got)
}

func TestQuery_WithDefaults(t *testing.T) {
	q := Query{}.WithDefaults(SourceJSearch)
	assert.Equal(t, DefaultTerms, q.Terms)
	assert.Equal(t, "", q.Location)
	assert.Equal(t, SourceJSearch, q.Source)
	assert.Equal(t, DefaultMaxResults, q.MaxResults)

	q = Query{Terms: " data ", Source: SourceIndeed, MaxResults: 5}.WithDefaults(SourceJSearch)
	assert.Equal(t, "data", q.Terms)
	assert.Equal(t, SourceIndeed, q.Source)
	assert.Equal(t, 5, q.MaxResults)
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, Query{Terms: "intern", MaxResults: 1}.Validate())

	err := Query{Terms: "", MaxResults: 1}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidQuery))

	err = Query{Terms: "intern", MaxResults: -3}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestParseSource(t *testing.T) {
	assert.Equal(t, SourceLinkedIn, ParseSource("  LinkedIn "))
	assert.True(t, ParseSource("JSEARCH").Known())
	assert.False(t, ParseSource("carriercompass").Known())
}

func TestListing_Incomplete(t *testing.T) {
	full := Listing{Title: ptr("a"), Company: ptr("b"), Description: ptr("c"), URL: ptr("https://x.test")}
	assert.False(t, full.Incomplete())

	full.Company = nil
	assert.True(t, full.Incomplete())
}

func TestTime(t *testing.T) {
	assert.Nil(t, Time(time.Time{}))
	now := time.Now()
	require.NotNil(t, Time(now))
}

func ptr(s string) *string { return &s }
