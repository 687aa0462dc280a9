// Package tokens estimates token counts for prompts. The gateway prefers
// the usage numbers reported by the upstream provider; the estimator fills
// in when a response omits them.
package tokens

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with tiktoken for OpenAI-family models and
// falls back to a character heuristic for everything else.
type Estimator struct {
	mu     sync.Mutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewEstimator creates an estimator with an empty codec cache.
func NewEstimator() *Estimator {
	return &Estimator{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Count returns the estimated token count of text for the given model.
// Never fails; inexact counts are acceptable for bookkeeping.
func (e *Estimator) Count(model, text string) int {
	if text == "" {
		return 0
	}

	if strings.HasPrefix(strings.ToLower(model), "claude-") {
		return approximate(text)
	}

	if codec, err := e.codec(model); err == nil {
		if n, err := codec.Count(text); err == nil {
			return n
		}
	}

	return approximate(text)
}

func (e *Estimator) codec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
		return codec, nil
	}

	encoding := encodingFor(model)

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.codecs[encoding]; ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}
	e.codecs[encoding] = codec
	return codec, nil
}

func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

// approximate is the rough rule of thumb of one token per four characters.
// Used for models without a tiktoken vocabulary (Claude family).
func approximate(text string) int {
	n := utf8.RuneCountInString(text)
	count := n / 4
	if count == 0 {
		count = 1
	}
	return count
}
