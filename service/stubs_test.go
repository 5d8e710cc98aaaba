package service

import (
	"context"
	"errors"

	"lexdraft-backend/repository"
)

// stubGenerator answers every text generation call with a fixed response
// or error, recording the prompts it saw.
type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// promptGenerator routes prompts to canned answers so one stub can serve
// detection, classification, and drafting in the same pipeline run.
type promptGenerator struct {
	respond func(prompt string) (string, error)
	prompts []string
}

func (s *promptGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.respond(prompt)
}

type stubAudioGenerator struct {
	response string
	err      error
	calls    int
}

func (s *stubAudioGenerator) GenerateFromAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type stubEmbedder struct {
	embedding []float64
	err       error
	calls     int
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text, taskType string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.embedding != nil {
		return s.embedding, nil
	}
	return make([]float64, 768), nil
}

type stubSearcher struct {
	rows  []repository.IPCSectionRow
	err   error
	calls int
}

func (s *stubSearcher) SearchNearest(ctx context.Context, embedding []float64, limit int) ([]repository.IPCSectionRow, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

var errStubFailure = errors.New("stub failure")

func strptr(s string) *string { return &s }
