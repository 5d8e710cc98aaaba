package service

import (
	"context"
	"testing"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLegalQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		err      error
		want     bool
	}{
		{"plain yes", "Yes", nil, true},
		{"yes with punctuation", "Yes.", nil, true},
		{"verbose answer containing yes", "Well, yes, this concerns theft under Indian law.", nil, true},
		{"plain no", "No", nil, false},
		{"verbose answer without yes", "This appears to be a cooking question.", nil, false},
		{"empty answer", "", nil, false},
		{"call failure fails closed", "", errStubFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewDraftService(DraftWithGenerator(&stubGenerator{response: tt.response, err: tt.err}))
			assert.Equal(t, tt.want, svc.IsLegalQuery(context.Background(), "some query"))
		})
	}
}

func TestSearchRelevantSectionsNormalizesRows(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{rows: []repository.IPCSectionRow{
		{SectionNumber: strptr("379"), Title: strptr("Theft"), Description: "Whoever commits theft...", Distance: 0.12},
		{SectionNumber: nil, Title: strptr("Robbery"), Description: "In all robbery there is...", Distance: 0.25},
		{SectionNumber: strptr("380"), Title: nil, Description: "Theft in dwelling house...", Distance: 0.31},
		{SectionNumber: strptr(""), Title: strptr(""), Description: "Incomplete row", Distance: 0.40},
	}}

	svc := NewDraftService(
		DraftWithEmbedder(&stubEmbedder{}),
		DraftWithSectionSearcher(searcher),
	)

	sections, err := svc.SearchRelevantSections(context.Background(), "a man stole my laptop", 5)
	require.NoError(t, err)
	require.Len(t, sections, 4)

	assert.Equal(t, "379", sections[0].SectionNumber)
	assert.Equal(t, "Theft", sections[0].Title)
	assert.Equal(t, "N/A", sections[1].SectionNumber)
	assert.Equal(t, "N/A", sections[2].Title)
	assert.Equal(t, "N/A", sections[3].SectionNumber)
	assert.Equal(t, "N/A", sections[3].Title)

	for _, s := range sections {
		assert.NotEmpty(t, s.SectionNumber)
		assert.NotEmpty(t, s.Title)
	}
}

func TestSearchRelevantSectionsRespectsLimit(t *testing.T) {
	t.Parallel()

	rows := make([]repository.IPCSectionRow, 10)
	for i := range rows {
		rows[i] = repository.IPCSectionRow{SectionNumber: strptr("1"), Title: strptr("t"), Description: "d"}
	}
	svc := NewDraftService(
		DraftWithEmbedder(&stubEmbedder{}),
		DraftWithSectionSearcher(&stubSearcher{rows: rows}),
	)

	sections, err := svc.SearchRelevantSections(context.Background(), "query", 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(sections), 3)
}

func TestSearchRelevantSectionsEmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	svc := NewDraftService(
		DraftWithEmbedder(&stubEmbedder{}),
		DraftWithSectionSearcher(&stubSearcher{}),
	)

	sections, err := svc.SearchRelevantSections(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestSearchRelevantSectionsPropagatesFailures(t *testing.T) {
	t.Parallel()

	t.Run("index unreachable", func(t *testing.T) {
		svc := NewDraftService(
			DraftWithEmbedder(&stubEmbedder{}),
			DraftWithSectionSearcher(&stubSearcher{err: errStubFailure}),
		)
		_, err := svc.SearchRelevantSections(context.Background(), "query", 5)
		require.ErrorIs(t, err, ErrRetrievalFailed)
	})

	t.Run("embedding failure", func(t *testing.T) {
		svc := NewDraftService(
			DraftWithEmbedder(&stubEmbedder{err: errStubFailure}),
			DraftWithSectionSearcher(&stubSearcher{}),
		)
		_, err := svc.SearchRelevantSections(context.Background(), "query", 5)
		require.ErrorIs(t, err, ErrEmbeddingFailed)
	})
}

func TestBuildComplaintPrompt(t *testing.T) {
	t.Parallel()

	t.Run("sections are rendered as bullets", func(t *testing.T) {
		prompt := buildComplaintPrompt("A man broke into my house and stole my laptop", []models.IPCSection{
			{SectionNumber: "379", Title: "Theft", Description: "Whoever commits theft shall be punished..."},
			{SectionNumber: "457", Title: "Lurking house-trespass", Description: "Whoever commits lurking house-trespass..."},
		})

		assert.Contains(t, prompt, "A man broke into my house and stole my laptop")
		assert.Contains(t, prompt, "• Section 379: Theft")
		assert.Contains(t, prompt, "• Section 457: Lurking house-trespass")
		assert.Contains(t, prompt, "LEGAL COMPLAINT (Title)")
		assert.Contains(t, prompt, "Applicable Legal Sections:")
		assert.NotContains(t, prompt, scenarioOnlyFallback)
	})

	t.Run("empty retrieval substitutes the fallback phrase", func(t *testing.T) {
		prompt := buildComplaintPrompt("my neighbor harasses me", nil)

		assert.Contains(t, prompt, scenarioOnlyFallback)
		assert.NotContains(t, prompt, "• Section")
	})
}

func TestDraftComplaint(t *testing.T) {
	t.Parallel()

	t.Run("returns model output", func(t *testing.T) {
		svc := NewDraftService(DraftWithGenerator(&stubGenerator{response: "LEGAL COMPLAINT\n..."}))
		got, err := svc.DraftComplaint(context.Background(), "scenario", nil)
		require.NoError(t, err)
		assert.Equal(t, "LEGAL COMPLAINT\n...", got)
	})

	t.Run("failure surfaces as error", func(t *testing.T) {
		svc := NewDraftService(DraftWithGenerator(&stubGenerator{err: errStubFailure}))
		_, err := svc.DraftComplaint(context.Background(), "scenario", nil)
		require.ErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("empty output is a failure", func(t *testing.T) {
		svc := NewDraftService(DraftWithGenerator(&stubGenerator{response: ""}))
		_, err := svc.DraftComplaint(context.Background(), "scenario", nil)
		require.ErrorIs(t, err, ErrGenerationFailed)
	})
}

func TestDraftErrorMarker(t *testing.T) {
	t.Parallel()

	msg := DraftErrorMessage(errStubFailure)
	assert.True(t, IsDraftError(msg))
	assert.Contains(t, msg, "Could not generate complaint")
	assert.Contains(t, msg, errStubFailure.Error())

	assert.False(t, IsDraftError("LEGAL COMPLAINT\nTo, The Station House Officer"))
}
