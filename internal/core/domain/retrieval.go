package domain

type ScoreKind string

const (
	ScoreLexical    ScoreKind = "lexical"
	ScoreSimilarity ScoreKind = "similarity"
)

// RetrievalCandidate is produced fresh per query and never persisted.
// FusedScore is only meaningful when Fused is set.
type RetrievalCandidate struct {
	ChunkID    string        `json:"chunk_id"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	Score      float64       `json:"score"`
	ScoreKind  ScoreKind     `json:"score_kind"`
	FusedScore float64       `json:"fused_score,omitempty"`
	Fused      bool          `json:"-"`
}

type RerankedCandidate struct {
	RetrievalCandidate
	RelevanceScore float64 `json:"relevance_score"`
}
