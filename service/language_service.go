package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lexdraft-backend/models"
)

// TextGenerator is the generate-text capability of the model client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// AudioGenerator is the generate-from-audio capability of the model client.
type AudioGenerator interface {
	GenerateFromAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error)
}

// Embedder is the embed-text capability of the model client.
type Embedder interface {
	EmbedText(ctx context.Context, text, taskType string) ([]float64, error)
}

var (
	ErrTranscriptionFailed = errors.New("failed to transcribe audio")
	ErrEmptyAudio          = errors.New("audio input is empty")
)

const (
	// wavMIMEType is the declared type for voice recordings; the capture
	// front-end submits WAV buffers.
	wavMIMEType = "audio/wav"

	transcriptionPrompt = `Analyze the audio. Provide a minified JSON with "transcription" and "language" keys. Example: {"transcription": "text", "language": "English"}`

	fallbackLanguage = "English"
)

// LanguageService handles language detection, translation, and voice
// transcription. Detection and translation degrade rather than fail:
// detection falls back to English and translation falls back to the
// original text, so a model outage never blocks the pipeline before
// classification.
type LanguageService struct {
	generator   TextGenerator
	transcriber AudioGenerator
}

// LanguageServiceOption is a functional option for LanguageService.
type LanguageServiceOption func(*LanguageService)

// LanguageWithGenerator sets the text generator.
func LanguageWithGenerator(g TextGenerator) LanguageServiceOption {
	return func(s *LanguageService) {
		s.generator = g
	}
}

// LanguageWithTranscriber sets the audio generator.
func LanguageWithTranscriber(a AudioGenerator) LanguageServiceOption {
	return func(s *LanguageService) {
		s.transcriber = a
	}
}

// NewLanguageService creates a new language service.
func NewLanguageService(opts ...LanguageServiceOption) *LanguageService {
	s := &LanguageService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetectLanguage identifies the language of a text. On any model failure it
// returns "English" so the pipeline proceeds without a translation step.
func (s *LanguageService) DetectLanguage(ctx context.Context, text string) string {
	if s.generator == nil {
		return fallbackLanguage
	}

	prompt := fmt.Sprintf("Identify the language of this text. Respond with only the language name.\nText: %q", text)
	response, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return fallbackLanguage
	}

	language := strings.TrimSpace(response)
	if language == "" {
		return fallbackLanguage
	}
	return language
}

// Translate translates text to the target language. On any model failure it
// returns the input unchanged; translation must never block the pipeline,
// only degrade language quality. An empty sourceLanguage means "auto".
func (s *LanguageService) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) string {
	if s.generator == nil {
		return text
	}
	if sourceLanguage == "" {
		sourceLanguage = "auto"
	}

	prompt := fmt.Sprintf("Translate the following text from %s to %s:\n\n%s", sourceLanguage, targetLanguage, text)
	response, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return text
	}

	translated := strings.TrimSpace(response)
	if translated == "" {
		return text
	}
	return translated
}

// Transcribe runs speech-to-text over a WAV buffer and detects the spoken
// language in the same call. The model is instructed to answer with a
// two-key JSON object; any parse failure is a transcription failure.
func (s *LanguageService) Transcribe(ctx context.Context, audio []byte) (models.Transcription, error) {
	if s.transcriber == nil {
		return models.Transcription{}, errors.New("audio generator not set")
	}
	if len(audio) == 0 {
		return models.Transcription{}, ErrEmptyAudio
	}

	response, err := s.transcriber.GenerateFromAudio(ctx, transcriptionPrompt, audio, wavMIMEType)
	if err != nil {
		return models.Transcription{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	var result models.Transcription
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &result); err != nil {
		return models.Transcription{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	return result, nil
}

// stripCodeFence removes surrounding markdown code-fence markup the model
// sometimes wraps around JSON answers.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
