package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

var errNoJSONObject = errors.New("no json object in judge response")

// DefaultVerdict is used whenever the judge response cannot be parsed.
func DefaultVerdict() domain.Verdict {
	return domain.Verdict{
		IsGrounded:  true,
		Confidence:  7,
		Explanation: "Verification inconclusive",
	}
}

// ParseVerdict reads the first top-level JSON object in a judge response.
// Absent fields take the values false, 5 and "Unable to verify"; confidence
// is rounded and clamped to 1..10.
func ParseVerdict(raw string) (domain.Verdict, error) {
	object, ok := extractFirstJSONObject(raw)
	if !ok {
		return domain.Verdict{}, errNoJSONObject
	}

	var parsed struct {
		IsGrounded  *bool    `json:"is_grounded"`
		Confidence  *float64 `json:"confidence"`
		Explanation *string  `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}

	verdict := domain.Verdict{Confidence: 5, Explanation: "Unable to verify"}
	if parsed.IsGrounded != nil {
		verdict.IsGrounded = *parsed.IsGrounded
	}
	if parsed.Confidence != nil {
		verdict.Confidence = clampConfidence(*parsed.Confidence)
	}
	if parsed.Explanation != nil {
		verdict.Explanation = *parsed.Explanation
	}
	return verdict, nil
}

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 1
	}
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// extractFirstJSONObject returns the first balanced {...} span, skipping
// braces inside JSON strings.
func extractFirstJSONObject(raw string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if start < 0 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
