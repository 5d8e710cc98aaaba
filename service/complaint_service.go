package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexdraft-backend/models"
	"lexdraft-backend/render"
)

var ErrEmptyInput = errors.New("complaint input is empty")

// autoDetectLanguage is the output-language value meaning "mirror the
// detected input language".
const autoDetectLanguage = "Auto-Detect"

// ComplaintService orchestrates one grievance through the full pipeline:
// transcription or language detection, normalization to English, scope
// classification, IPC section retrieval, drafting, output-language
// translation, and rendering. Stages run strictly sequentially; each stage
// owns its own failure fallback, so the orchestrator never retries.
type ComplaintService struct {
	language *LanguageService
	drafts   *DraftService
	renderer *render.Renderer
}

// ComplaintServiceOption is a functional option for ComplaintService.
type ComplaintServiceOption func(*ComplaintService)

// WithLanguageService sets the language service.
func WithLanguageService(language *LanguageService) ComplaintServiceOption {
	return func(s *ComplaintService) {
		s.language = language
	}
}

// WithDraftService sets the draft service.
func WithDraftService(drafts *DraftService) ComplaintServiceOption {
	return func(s *ComplaintService) {
		s.drafts = drafts
	}
}

// WithRenderer sets the document renderer.
func WithRenderer(renderer *render.Renderer) ComplaintServiceOption {
	return func(s *ComplaintService) {
		s.renderer = renderer
	}
}

// NewComplaintService creates a new complaint service.
func NewComplaintService(opts ...ComplaintServiceOption) *ComplaintService {
	s := &ComplaintService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessComplaintRequest is one citizen grievance. Either Text or Audio is
// set; Audio wins when both are. OutputLanguage empty or "Auto-Detect"
// mirrors the detected input language.
type ProcessComplaintRequest struct {
	Text           string
	Audio          []byte
	OutputLanguage string
}

// ProcessComplaintResult is the outcome of one pipeline run. When Rejected
// is true the input was out of scope and no retrieval, drafting, or
// rendering took place.
type ProcessComplaintResult struct {
	OriginalText     string
	DetectedLanguage string
	EnglishText      string
	Rejected         bool
	Sections         []models.IPCSection
	Draft            models.ComplaintDraft
	Document         render.Document
	// PDFError is the per-artifact render failure, if any. Plain-text
	// delivery is unaffected.
	PDFError error
}

// ProcessComplaint drives one request through the pipeline.
func (s *ComplaintService) ProcessComplaint(ctx context.Context, req ProcessComplaintRequest) (*ProcessComplaintResult, error) {
	if s.language == nil {
		return nil, errors.New("language service not set")
	}
	if s.drafts == nil {
		return nil, errors.New("draft service not set")
	}
	if s.renderer == nil {
		return nil, errors.New("renderer not set")
	}

	result := &ProcessComplaintResult{}

	// 1. Obtain the scenario text and its language.
	if len(req.Audio) > 0 {
		transcription, err := s.language.Transcribe(ctx, req.Audio)
		if err != nil {
			return nil, err
		}
		result.OriginalText = transcription.Text
		result.DetectedLanguage = transcription.Language
	} else {
		text := strings.TrimSpace(req.Text)
		if text == "" {
			return nil, ErrEmptyInput
		}
		result.OriginalText = text
		result.DetectedLanguage = s.language.DetectLanguage(ctx, text)
	}

	// 2. Normalize to English; retrieval and drafting operate on English.
	result.EnglishText = result.OriginalText
	if !isEnglish(result.DetectedLanguage) {
		result.EnglishText = s.language.Translate(ctx, result.OriginalText, "English", result.DetectedLanguage)
	}

	// 3. Classification gate: out-of-scope input terminates the pipeline.
	if !s.drafts.IsLegalQuery(ctx, result.EnglishText) {
		result.Rejected = true
		return result, nil
	}

	// 4. Retrieval. An unreachable index aborts the request; an empty
	// result proceeds with scenario-only drafting.
	sections, err := s.drafts.SearchRelevantSections(ctx, result.EnglishText, DefaultSectionLimit)
	if err != nil {
		return nil, err
	}
	result.Sections = sections

	// 5. Drafting. A failure becomes a visible message delivered in place
	// of the complaint and still flows through translation and rendering.
	complaint, err := s.drafts.DraftComplaint(ctx, result.EnglishText, sections)
	if err != nil {
		complaint = DraftErrorMessage(err)
	}

	// 6. Output-language translation. The draft is a value; translating
	// produces a new one.
	outputLanguage := req.OutputLanguage
	if outputLanguage == "" || strings.EqualFold(outputLanguage, autoDetectLanguage) {
		outputLanguage = result.DetectedLanguage
	}
	result.Draft = models.ComplaintDraft{Text: complaint, Language: outputLanguage}
	if !isEnglish(outputLanguage) {
		result.Draft.Text = s.language.Translate(ctx, complaint, outputLanguage, "English")
	}

	// 7. Rendering. PDF failure is per-artifact.
	document, err := s.renderer.Render(result.Draft.Text)
	if err != nil {
		result.PDFError = fmt.Errorf("pdf artifact unavailable: %w", err)
	}
	result.Document = document

	return result, nil
}

func isEnglish(language string) bool {
	language = strings.TrimSpace(language)
	return language == "" || strings.EqualFold(language, "English")
}
