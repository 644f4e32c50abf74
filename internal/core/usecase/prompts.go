package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

const (
	unknownSource       = "Unknown"
	nearEmptyTextChars  = 10
	sourcePreviewRunes  = 200
	lowConfidenceNotice = "I don't have enough information in the provided documents to answer this confidently. Based on limited context: "
)

// useOpenDomain reports whether no candidate carries usable text.
func useOpenDomain(candidates []domain.RerankedCandidate) bool {
	for _, c := range candidates {
		if len([]rune(strings.TrimSpace(c.Text))) >= nearEmptyTextChars {
			return false
		}
	}
	return true
}

func buildDraftPrompt(query string, candidates []domain.RerankedCandidate, history []domain.ConversationTurn) string {
	if useOpenDomain(candidates) {
		return buildOpenDomainPrompt(query, history)
	}
	return buildGroundedPrompt(query, candidates, history)
}

func buildOpenDomainPrompt(query string, history []domain.ConversationTurn) string {
	return fmt.Sprintf(`You are a helpful AI assistant. Answer this question using your general knowledge:
%sQuestion: %s

Answer naturally and helpfully.`, formatHistory(history), query)
}

func buildGroundedPrompt(query string, candidates []domain.RerankedCandidate, history []domain.ConversationTurn) string {
	blocks := make([]string, 0, len(candidates))
	for _, c := range candidates {
		blocks = append(blocks, fmt.Sprintf("[Source: %s]\n%s", sourceName(c.Metadata), c.Text))
	}

	return fmt.Sprintf(`You are a helpful assistant. Answer the question using:
1. The provided context documents (prioritize this)
2. Your general knowledge if the context doesn't have enough info

Context:
%s
%sQuestion: %s

Instructions:
- If the context contains relevant info, use it and cite sources
- If the context is insufficient, supplement with your general knowledge and mention this
- Be clear about what comes from documents vs. your knowledge

Answer:`, strings.Join(blocks, "\n\n"), formatHistory(history), query)
}

func buildJudgePrompt(query, answer string, candidates []domain.RerankedCandidate) string {
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}

	return fmt.Sprintf(`You are a fact-checker. Your job is to verify if an answer is accurately supported by the given context.

Context:
%s

Question: %s

Answer to verify: %s

Task:
1. Check if the answer is factually grounded in the context
2. Rate confidence from 1-10 (10 = fully supported, 1 = not supported)
3. Provide a brief explanation

Respond in JSON format:
{
    "is_grounded": true/false,
    "confidence": <1-10>,
    "explanation": "<brief explanation>"
}`, strings.Join(texts, "\n\n"), query, answer)
}

// formatHistory renders earlier turns as "role: content" lines framed by
// blank lines, or a single newline when there is no history.
func formatHistory(history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return "\n"
	}
	var b strings.Builder
	b.WriteString("\nConversation so far:\n")
	for _, turn := range history {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	b.WriteString("\n")
	return b.String()
}

func sourceName(metadata domain.ChunkMetadata) string {
	if strings.TrimSpace(metadata.Source) == "" {
		return unknownSource
	}
	return metadata.Source
}

func buildSources(candidates []domain.RerankedCandidate) []domain.SourceRef {
	out := make([]domain.SourceRef, 0, len(candidates))
	for _, c := range candidates {
		preview := []rune(c.Text)
		if len(preview) > sourcePreviewRunes {
			preview = preview[:sourcePreviewRunes]
		}
		out = append(out, domain.SourceRef{
			Source:      sourceName(c.Metadata),
			TextPreview: string(preview) + "...",
		})
	}
	return out
}
