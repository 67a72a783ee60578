package inference

import (
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

var (
	encOnce sync.Once
	enc     tokenizer.Codec
)

// CountTokens estimates the token count of text with cl100k_base. When the
// encoding is unavailable it falls back to roughly four bytes per token.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	encOnce.Do(func() {
		e, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("tokenizer unavailable, using byte estimate")
			return
		}
		enc = e
	})
	if enc != nil {
		if n, err := enc.Count(text); err == nil {
			return n
		}
	}
	n := len(text) / 4
	if n == 0 && utf8.RuneCountInString(text) > 0 {
		n = 1
	}
	return n
}

// PromptTokens estimates the size of a request as sent upstream using
// count, or CountTokens when count is nil.
func PromptTokens(req Request, count func(string) int) int {
	if count == nil {
		count = CountTokens
	}
	total := count(req.Text)
	for _, m := range req.History {
		total += count(m.Text)
	}
	return total
}
