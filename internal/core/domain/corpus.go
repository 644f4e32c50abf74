package domain

type CorpusEventKind string

const (
	CorpusAppend  CorpusEventKind = "append"
	CorpusClear   CorpusEventKind = "clear"
	CorpusRebuild CorpusEventKind = "rebuild"
)

// CorpusEvent tells other replicas how to bring their in-memory lexical
// index in line with the shared stores.
type CorpusEvent struct {
	Origin     string          `json:"origin"`
	Kind       CorpusEventKind `json:"kind"`
	DocumentID string          `json:"document_id,omitempty"`
}
