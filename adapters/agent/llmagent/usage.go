package llmagent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// usageEstimator fills in token accounting for providers/responses that
// don't report it, using the cl100k_base encoding for every provider's
// text. It returns a zero Usage when that encoding cannot be loaded.
type usageEstimator struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

func newUsageEstimator() *usageEstimator {
	return &usageEstimator{}
}

func (e *usageEstimator) estimate(req Request, completion string) Usage {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enc == nil {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return Usage{}
		}
		e.enc = enc
	}

	prompt := 0
	for _, m := range req.Messages {
		prompt += len(e.enc.Encode(m.Content, nil, nil)) + 4 // per-message role/delimiter overhead
	}
	completionTokens := len(e.enc.Encode(completion, nil, nil))

	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}
