package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

const (
	defaultK1 = 1.5
	defaultB  = 0.75
)

type document struct {
	chunk  domain.Chunk
	terms  map[string]int
	length int
}

// BM25Index is an in-memory Okapi BM25 index over whitespace-split,
// lowercased tokens. Searches share a read lock; Build, Add and Clear take
// the write lock so a query never sees a half-applied batch.
type BM25Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	docs     []document
	position map[string]int
	df       map[string]int
	totalLen int
}

func NewBM25Index() *BM25Index {
	return &BM25Index{
		k1:       defaultK1,
		b:        defaultB,
		position: make(map[string]int),
		df:       make(map[string]int),
	}
}

// Build replaces the whole corpus.
func (x *BM25Index) Build(chunks []domain.Chunk) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.reset()
	for _, c := range chunks {
		x.put(c)
	}
}

// Add extends the corpus. A chunk whose id is already indexed replaces the
// earlier entry; other entries are never retokenized.
func (x *BM25Index) Add(chunks []domain.Chunk) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, c := range chunks {
		x.put(c)
	}
}

func (x *BM25Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.reset()
}

func (x *BM25Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search returns up to limit candidates with a positive score, best first.
// Equal scores keep corpus order.
func (x *BM25Index) Search(query string, limit int) []domain.RetrievalCandidate {
	queryTerms := Tokenize(query)
	if limit <= 0 || len(queryTerms) == 0 {
		return []domain.RetrievalCandidate{}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.docs) == 0 {
		return []domain.RetrievalCandidate{}
	}

	n := float64(len(x.docs))
	avgLen := float64(x.totalLen) / n
	if avgLen == 0 {
		avgLen = 1
	}

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, 0, 32)
	for pos, d := range x.docs {
		score := 0.0
		for _, term := range queryTerms {
			tf := d.terms[term]
			if tf == 0 {
				continue
			}
			freq := float64(tf)
			norm := 1 - x.b + x.b*float64(d.length)/avgLen
			score += x.idf(term, n) * freq * (x.k1 + 1) / (freq + x.k1*norm)
		}
		if score > 0 {
			hits = append(hits, scored{pos: pos, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]domain.RetrievalCandidate, 0, len(hits))
	for _, h := range hits {
		c := x.docs[h.pos].chunk
		out = append(out, domain.RetrievalCandidate{
			ChunkID:   c.ID,
			Text:      c.Text,
			Metadata:  c.Metadata,
			Score:     h.score,
			ScoreKind: domain.ScoreLexical,
		})
	}
	return out
}

// idf is the non-negative BM25 variant, so a term present in every chunk
// still contributes a small positive weight.
func (x *BM25Index) idf(term string, n float64) float64 {
	df := float64(x.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func (x *BM25Index) reset() {
	x.docs = nil
	x.position = make(map[string]int)
	x.df = make(map[string]int)
	x.totalLen = 0
}

func (x *BM25Index) put(c domain.Chunk) {
	tokens := Tokenize(c.Text)
	d := document{
		chunk:  c,
		terms:  make(map[string]int, len(tokens)),
		length: len(tokens),
	}
	for _, t := range tokens {
		d.terms[t]++
	}

	if pos, ok := x.position[c.ID]; ok && c.ID != "" {
		old := x.docs[pos]
		for t := range old.terms {
			x.df[t]--
			if x.df[t] <= 0 {
				delete(x.df, t)
			}
		}
		x.totalLen -= old.length
		x.docs[pos] = d
	} else {
		if c.ID != "" {
			x.position[c.ID] = len(x.docs)
		}
		x.docs = append(x.docs, d)
	}

	for t := range d.terms {
		x.df[t]++
	}
	x.totalLen += d.length
}

// Tokenize lowercases and splits on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
