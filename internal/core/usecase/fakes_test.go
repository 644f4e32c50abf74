package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	createErr   error
	getErr      error
	statusErr   error
	readyErr    error
	statusCalls []domain.DocumentStatus
	lastError   string
	readyCount  int
	deleted     bool
}

func newDocRepoFake() *docRepoFake {
	return &docRepoFake{docs: map[string]*domain.Document{}}
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, status)
	if f.statusErr != nil {
		return f.statusErr
	}
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	f.lastError = errMessage
	return nil
}

func (f *docRepoFake) MarkReady(_ context.Context, id string, chunkCount int) error {
	if f.readyErr != nil {
		return f.readyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, domain.StatusReady)
	f.readyCount = chunkCount
	if doc, ok := f.docs[id]; ok {
		doc.Status = domain.StatusReady
		doc.ChunkCount = chunkCount
	}
	return nil
}

func (f *docRepoFake) DeleteAll(context.Context) error {
	f.deleted = true
	f.docs = map[string]*domain.Document{}
	return nil
}

type chunkStoreFake struct {
	mu      sync.Mutex
	byDoc   map[string][]domain.Chunk
	order   []string
	saveErr error
	listErr error
}

func newChunkStoreFake() *chunkStoreFake {
	return &chunkStoreFake{byDoc: map[string][]domain.Chunk{}}
}

func (f *chunkStoreFake) SaveChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byDoc[documentID]; !ok {
		f.order = append(f.order, documentID)
	}
	f.byDoc[documentID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (f *chunkStoreFake) ListChunks(context.Context) ([]domain.Chunk, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, id := range f.order {
		out = append(out, f.byDoc[id]...)
	}
	return out, nil
}

func (f *chunkStoreFake) ListByDocument(_ context.Context, documentID string) ([]domain.Chunk, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Chunk(nil), f.byDoc[documentID]...), nil
}

func (f *chunkStoreFake) DeleteAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDoc = map[string][]domain.Chunk{}
	f.order = nil
	return nil
}

type storageFake struct {
	root      string
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

func (f *storageFake) Path(key string) string {
	return f.root + "/" + key
}

type queueFake struct {
	mu         sync.Mutex
	documentID string
	events     []domain.CorpusEvent
	err        error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (f *queueFake) PublishCorpusEvent(_ context.Context, event domain.CorpusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *queueFake) SubscribeCorpusEvents(context.Context, func(context.Context, domain.CorpusEvent) error) error {
	return errors.New("not implemented")
}

// loaderFake returns texts keyed by file base name.
type loaderFake struct {
	texts   map[string]string
	err     error
	loaded  []string
	allowed map[string]bool
}

func (f *loaderFake) Load(_ context.Context, path string) (string, error) {
	f.loaded = append(f.loaded, path)
	if f.err != nil {
		return "", f.err
	}
	for name, text := range f.texts {
		if strings.HasSuffix(path, name) {
			return text, nil
		}
	}
	return "", errors.New("no text for " + path)
}

func (f *loaderFake) Supports(path string) bool {
	if f.allowed == nil {
		return strings.HasSuffix(path, ".txt") || strings.HasSuffix(path, ".pdf")
	}
	return f.allowed[fileExtension(path)]
}

type lexicalFake struct {
	results []domain.RetrievalCandidate
	size    int
	added   [][]domain.Chunk
	built   []domain.Chunk
	cleared bool
}

func (f *lexicalFake) Build(chunks []domain.Chunk) {
	f.built = chunks
	f.size = len(chunks)
}
func (f *lexicalFake) Add(chunks []domain.Chunk) {
	f.added = append(f.added, chunks)
	f.size += len(chunks)
}
func (f *lexicalFake) Search(string, int) []domain.RetrievalCandidate { return f.results }
func (f *lexicalFake) Clear() {
	f.cleared = true
	f.size = 0
}
func (f *lexicalFake) Len() int { return f.size }

type embeddingFake struct {
	mu        sync.Mutex
	results   []domain.RetrievalCandidate
	searchErr error
	indexErr  error
	deleteErr error
	delay     time.Duration
	indexed   []domain.Chunk
	deleted   []string
	cleared   int
	limit     int
}

func (f *embeddingFake) Index(_ context.Context, chunks []domain.Chunk) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, chunks...)
	return nil
}

func (f *embeddingFake) Search(ctx context.Context, _ string, limit int) ([]domain.RetrievalCandidate, error) {
	f.mu.Lock()
	f.limit = limit
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *embeddingFake) Delete(_ context.Context, ids []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *embeddingFake) Clear(context.Context) error {
	f.cleared++
	f.indexed = nil
	return nil
}

type completionCall struct {
	prompt string
	opts   domain.CompletionOptions
}

// completerFake answers the draft call with draft and the judge call with
// verdict, telling them apart by the fact-checker preamble.
type completerFake struct {
	mu       sync.Mutex
	draft    string
	verdict  string
	draftErr error
	judgeErr error
	calls    []completionCall
}

func (f *completerFake) Complete(_ context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, completionCall{prompt: prompt, opts: opts})
	f.mu.Unlock()
	if strings.HasPrefix(prompt, "You are a fact-checker.") {
		return f.verdict, f.judgeErr
	}
	return f.draft, f.draftErr
}

func (f *completerFake) Model() string { return "fake-model" }

type scorerFake struct {
	name   string
	scores []float64
	err    error
	calls  int
}

func (f *scorerFake) Name() string { return f.name }

func (f *scorerFake) Score(context.Context, string, []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type conversationFake struct {
	mu        sync.Mutex
	turns     []domain.ConversationTurn
	appendErr error
}

func (f *conversationFake) AppendTurn(_ context.Context, turn domain.ConversationTurn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	return nil
}

func (f *conversationFake) RecentTurns(_ context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	all, _ := f.ListTurns(context.Background(), conversationID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *conversationFake) ListTurns(_ context.Context, conversationID string) ([]domain.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ConversationTurn
	for _, t := range f.turns {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	return out, nil
}

type pipelineMetricsFake struct {
	mu        sync.Mutex
	degraded  []string
	fallbacks []string
	inconcl   int
	gated     int
	outcomes  []string
}

func (f *pipelineMetricsFake) RetrievalDegraded(backend string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = append(f.degraded, backend)
}
func (f *pipelineMetricsFake) RerankFallback(scorer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks = append(f.fallbacks, scorer)
}
func (f *pipelineMetricsFake) VerificationFallback() { f.inconcl++ }
func (f *pipelineMetricsFake) GateTripped() { f.gated++ }
func (f *pipelineMetricsFake) QueryCompleted(outcome string, _ int, _ int, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}

func candidate(id, text string) domain.RetrievalCandidate {
	return domain.RetrievalCandidate{
		ChunkID:  id,
		Text:     text,
		Metadata: domain.ChunkMetadata{Source: id + ".txt"},
	}
}
