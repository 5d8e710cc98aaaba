package models

// ComplaintDraft is the model-produced complaint text in a given language.
// Drafts are values: translation or regeneration produces a new draft.
type ComplaintDraft struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcription is the result of running speech-to-text over a voice
// recording, including the language the model heard.
type Transcription struct {
	Text     string `json:"transcription"`
	Language string `json:"language"`
}
