package tokens

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures text in model tokens for context budgeting. The
// cl100k_base vocabulary is close enough across the models in play; when it
// cannot be loaded the counter degrades to a rune estimate rather than
// failing startup.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func NewCounter() *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tokenizer_unavailable", "error", err)
		return &Counter{}
	}
	return &Counter{enc: enc}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc == nil {
		// Rough average of 4 characters per token.
		return utf8.RuneCountInString(text)/4 + 1
	}
	return len(c.enc.Encode(text, nil, nil))
}
