package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"
)

// SectionSearcher is the nearest-neighbor query interface of the IPC
// section index.
type SectionSearcher interface {
	SearchNearest(ctx context.Context, embedding []float64, limit int) ([]repository.IPCSectionRow, error)
}

var (
	ErrRetrievalFailed  = errors.New("failed to retrieve legal context")
	ErrEmbeddingFailed  = errors.New("failed to generate embedding")
	ErrGenerationFailed = errors.New("failed to generate content")
)

const (
	// DefaultSectionLimit is the number of IPC sections retrieved per query.
	DefaultSectionLimit = 5

	// missingMetadata is substituted for absent section numbers or titles so
	// retrieval results never carry null fields.
	missingMetadata = "N/A"

	// scenarioOnlyFallback replaces the section list in the drafting prompt
	// when retrieval returned no hits.
	scenarioOnlyFallback = "Based on the user's description."

	// draftErrorPrefix marks a drafting result that is a failure message
	// rather than a complaint. Consumers check it with IsDraftError before
	// exporting.
	draftErrorPrefix = "Error:"

	retrievalQueryTask = "RETRIEVAL_QUERY"
)

// DraftService handles scope classification, IPC section retrieval, and
// complaint drafting.
type DraftService struct {
	generator TextGenerator
	embedder  Embedder
	sections  SectionSearcher
}

// DraftServiceOption is a functional option for DraftService.
type DraftServiceOption func(*DraftService)

// DraftWithGenerator sets the text generator.
func DraftWithGenerator(g TextGenerator) DraftServiceOption {
	return func(s *DraftService) {
		s.generator = g
	}
}

// DraftWithEmbedder sets the embedder.
func DraftWithEmbedder(e Embedder) DraftServiceOption {
	return func(s *DraftService) {
		s.embedder = e
	}
}

// DraftWithSectionSearcher sets the IPC section index.
func DraftWithSectionSearcher(searcher SectionSearcher) DraftServiceOption {
	return func(s *DraftService) {
		s.sections = searcher
	}
}

// NewDraftService creates a new draft service.
func NewDraftService(opts ...DraftServiceOption) *DraftService {
	s := &DraftService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsLegalQuery reports whether the text is a legal query under Indian law.
// The decision is positive iff the model's answer contains "yes"
// case-insensitively; verbose or malformed answers count as no. Any call
// failure also yields false, so classification fails closed.
func (s *DraftService) IsLegalQuery(ctx context.Context, text string) bool {
	if s.generator == nil {
		return false
	}

	prompt := fmt.Sprintf("Is the following text a legal query related to Indian law? Answer ONLY 'Yes' or 'No'.\nText: %q", text)
	response, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return false
	}
	return containsYes(response)
}

// containsYes is the classification decision rule, kept as an explicit
// predicate so the substring behavior is testable on its own.
func containsYes(response string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(response)), "yes")
}

// SearchRelevantSections embeds the query and returns up to limit IPC
// sections ranked by semantic similarity. Zero hits is an empty result, not
// an error; an unreachable index or embedding failure propagates so the
// orchestrator can decide whether to abort.
func (s *DraftService) SearchRelevantSections(ctx context.Context, query string, limit int) ([]models.IPCSection, error) {
	if s.embedder == nil {
		return nil, errors.New("embedder not set")
	}
	if s.sections == nil {
		return nil, errors.New("section searcher not set")
	}
	if limit <= 0 {
		limit = DefaultSectionLimit
	}

	embedding, err := s.embedder.EmbedText(ctx, query, retrievalQueryTask)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	rows, err := s.sections.SearchNearest(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	sections := make([]models.IPCSection, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, normalizeRow(row))
	}
	return sections, nil
}

// normalizeRow converts a raw index hit into an IPCSection, substituting
// the N/A sentinel for missing metadata.
func normalizeRow(row repository.IPCSectionRow) models.IPCSection {
	section := models.IPCSection{
		SectionNumber: missingMetadata,
		Title:         missingMetadata,
		Description:   row.Description,
		Distance:      row.Distance,
	}
	if row.SectionNumber != nil && *row.SectionNumber != "" {
		section.SectionNumber = *row.SectionNumber
	}
	if row.Title != nil && *row.Title != "" {
		section.Title = *row.Title
	}
	return section
}

// DraftComplaint asks the model to synthesize a formal complaint from the
// scenario and the retrieved sections. The orchestrator converts a drafting
// error into a user-visible message; see IsDraftError.
func (s *DraftService) DraftComplaint(ctx context.Context, scenario string, sections []models.IPCSection) (string, error) {
	if s.generator == nil {
		return "", errors.New("text generator not set")
	}

	content, err := s.generator.GenerateText(ctx, buildComplaintPrompt(scenario, sections))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if content == "" {
		return "", ErrGenerationFailed
	}
	return content, nil
}

// buildComplaintPrompt assembles the drafting prompt: the user's scenario
// plus a bulleted rendition of every retrieved section, and the fixed
// nine-part structure with bracketed placeholders for unknown facts.
func buildComplaintPrompt(scenario string, sections []models.IPCSection) string {
	return fmt.Sprintf(`Generate a formal legal complaint for Indian law based on this scenario: '%s'.
Relevant IPC sections found:
%s

Structure the complaint professionally with the following sections:
- LEGAL COMPLAINT (Title)
- To, The Station House Officer, [Police Station Name], [City, State, India]
- Date: [Current Date]
- Parties Involved: (Complainant and Accused)
- Factual Summary:
- Applicable Legal Sections:
- Demand or Request:
- Sender Details:
- Verification:
- Signature:

Fill in the details based on the user's scenario. Use placeholders like [Police Station Name] for information not provided.`,
		scenario, formatSectionList(sections))
}

// formatSectionList renders retrieved sections as prompt bullets, or the
// scenario-only fallback phrase when retrieval came back empty.
func formatSectionList(sections []models.IPCSection) string {
	if len(sections) == 0 {
		return scenarioOnlyFallback
	}

	lines := make([]string, 0, len(sections))
	for _, s := range sections {
		lines = append(lines, fmt.Sprintf("• Section %s: %s\n  Description: %s", s.SectionNumber, s.Title, s.Description))
	}
	return strings.Join(lines, "\n")
}

// DraftErrorMessage formats a drafting failure as the user-visible string
// the pipeline delivers in place of a complaint.
func DraftErrorMessage(err error) string {
	return fmt.Sprintf("%s Could not generate complaint. %v", draftErrorPrefix, err)
}

// IsDraftError reports whether a drafting result is a failure message
// rather than complaint text.
func IsDraftError(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), draftErrorPrefix)
}
