package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/grounded-rag/internal/infrastructure/resilience"
)

// Scorer asks an external cross-encoder service to score (query, text)
// pairs jointly.
type Scorer struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string, options Options) *Scorer {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (s *Scorer) Name() string {
	return "cross-encoder"
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score returns one score per text, aligned with the input order. The
// service may answer in any order and must cover every index.
func (s *Scorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}
	body, err := json.Marshal(rerankRequest{Model: s.model, Query: query, Documents: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var resp rerankResponse
	err = resilience.Call(ctx, s.executor, "crossencoder.rerank", func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("cross-encoder rerank request: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 2048))
			return &resilience.StatusError{
				Service:    "cross-encoder",
				Operation:  "rerank",
				StatusCode: httpResp.StatusCode,
				Status:     httpResp.Status,
				Body:       string(respBody),
			}
		}
		resp = rerankResponse{}
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("rerank result index %d out of range", r.Index)
		}
		scores[r.Index] = r.RelevanceScore
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing score for document %d", i)
		}
	}
	return scores, nil
}
