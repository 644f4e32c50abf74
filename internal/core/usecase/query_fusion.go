package usecase

import (
	"sort"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

const defaultRRFK = 60

type fusedCandidate struct {
	candidate domain.RetrievalCandidate
	score     float64
	order     int
}

// fuseRRF merges ranked lists with reciprocal rank fusion. Each list adds
// 1/(rank+k) per candidate, rank 0-based. A chunk seen in several lists keeps
// the text and metadata of the list merged first; ties keep first-seen order.
func fuseRRF(rrfK int, lists ...[]domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	size := 0
	for _, l := range lists {
		size += len(l)
	}
	acc := make(map[string]*fusedCandidate, size)
	for _, list := range lists {
		for rank, c := range list {
			entry, ok := acc[c.ChunkID]
			if !ok {
				entry = &fusedCandidate{candidate: c, order: len(acc)}
				acc[c.ChunkID] = entry
			}
			entry.score += 1.0 / float64(rank+rrfK)
		}
	}

	ordered := make([]*fusedCandidate, 0, len(acc))
	for _, entry := range acc {
		ordered = append(ordered, entry)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].order < ordered[j].order
	})

	out := make([]domain.RetrievalCandidate, 0, len(ordered))
	for _, entry := range ordered {
		c := entry.candidate
		c.FusedScore = entry.score
		c.Fused = true
		out = append(out, c)
	}
	return out
}

func trimCandidates[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}
