package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	FileType    string         `json:"file_type"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	ChunkCount  int            `json:"chunk_count"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ChunkMetadata travels with every chunk and is what sources are attributed to.
type ChunkMetadata struct {
	DocumentID string `json:"document_id,omitempty"`
	Source     string `json:"source"`
	FileType   string `json:"file_type"`
	FilePath   string `json:"file_path"`
}

// Chunk is immutable once created. Length is the word count of Text at
// creation time and is never recomputed.
type Chunk struct {
	ID       string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Length   int           `json:"length"`
}
