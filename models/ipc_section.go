package models

// IPCSection is one provision of the Indian Penal Code held in the vector
// index. The pipeline only ever reads these; the corpus is populated offline
// by cmd/build-ipc-index.
type IPCSection struct {
	SectionNumber string  `json:"section_number"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Distance      float64 `json:"distance,omitempty"` // Vector similarity distance
}
