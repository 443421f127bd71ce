package ollama

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// clipRunes caps s at max bytes without cutting a multibyte rune in half,
// so truncated prompts stay valid UTF-8.
func clipRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func buildModePrompt(query string) string {
	const maxSnippet = 2000
	snippet := clipRunes(query, maxSnippet)

	return `You are a query router for an asset registry question-answering system.
Classify the user query into exactly one mode:
- "structured": asks for counts, lists or breakdowns over asset fields (data source, condition, criticality, category, location, age).
- "analytical": asks for interpretation or diagnosis of asset data, needs document context.
- "knowledge": asks about standards, regulations, procedures or general maintenance knowledge.
Return strict JSON: {"mode": "structured|analytical|knowledge", "confidence": 0.0-1.0}.
No markdown, no extra keys.

Query:
` + snippet
}

func buildRerankPrompt(query string, passages []string) string {
	var b strings.Builder
	for idx, passage := range passages {
		const maxPassage = 1500
		fmt.Fprintf(&b, "[%d]\n%s\n\n", idx+1, clipRunes(passage, maxPassage))
	}

	return fmt.Sprintf(`Score how relevant each passage is to the query, from 0.0 (unrelated) to 1.0 (directly answers it).
Return strict JSON: an array of %d numbers, one per passage, in passage order.
No markdown, no extra keys.

Query:
%s

Passages:
%s`, len(passages), query, b.String())
}

func buildAnswerPrompt(question string, payload *domain.ContextPayload) string {
	var b strings.Builder
	if payload != nil {
		if payload.Structured != nil {
			fmt.Fprintf(&b, "[exact] intent=%s count=%d\n", payload.Structured.Intent, payload.Structured.Count)
			for _, g := range payload.Structured.Groups {
				fmt.Fprintf(&b, "  %s: %d\n", g.Value, g.Count)
			}
			b.WriteString("\n")
		}
		for idx, item := range payload.Items {
			fmt.Fprintf(&b, "[%d] source=%s locator=%s score=%.3f\n%s\n\n",
				idx+1, item.SourceID, item.Locator, item.Score, item.Text)
		}
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
Exact figures marked [exact] come from the asset registry; quote them as-is.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s`, question, b.String())
}
