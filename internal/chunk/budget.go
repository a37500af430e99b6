package chunk

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"manifold/internal/rlm"
)

// HeuristicEncoding is a cl100k_base tiktoken encoder used as a
// provider-agnostic approximation when a backend has no accurate
// CountTokens endpoint of its own. cl100k_base is not exact for
// Anthropic/Google models, but it is far closer than chars/4 and costs
// nothing to compute.
type HeuristicEncoding struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

var (
	sharedEncoding     *HeuristicEncoding
	sharedEncodingOnce sync.Once
)

// SharedHeuristicEncoding returns a process-wide cl100k_base encoder,
// loading it lazily on first use.
func SharedHeuristicEncoding() *HeuristicEncoding {
	sharedEncodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			sharedEncoding = &HeuristicEncoding{enc: nil}
			return
		}
		sharedEncoding = &HeuristicEncoding{enc: enc}
	})
	return sharedEncoding
}

// CountTokens returns the encoder's token count for text, falling back to
// EstimateTokens if the encoding failed to load.
func (h *HeuristicEncoding) CountTokens(text string) int {
	if h == nil || h.enc == nil {
		return EstimateTokens(text)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.enc.Encode(text, nil, nil))
}

// CountMessagesTokens sums per-message token counts plus a small fixed
// overhead per message for role/formatting, mirroring how chat APIs bill
// message structure in addition to raw content.
func (h *HeuristicEncoding) CountMessagesTokens(msgs []rlm.Message) int {
	const perMessageOverhead = 4
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + h.CountTokens(m.Content)
	}
	return total
}

// Budget tracks how many tokens of a model's context window remain
// available to the driver after reserving room for the model's reply.
type Budget struct {
	mu             sync.RWMutex
	maxTokens      int
	reservedTokens int
	usedTokens     int
}

// NewBudget creates a Budget for a model with the given context window,
// reserving reservedForOutput tokens so a completion always has room to
// produce a reply.
func NewBudget(maxTokens, reservedForOutput int) *Budget {
	return &Budget{maxTokens: maxTokens, reservedTokens: reservedForOutput}
}

// Available returns how many tokens can still be spent on input.
func (b *Budget) Available() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxTokens - b.reservedTokens - b.usedTokens
}

// CanFit reports whether n additional tokens still fit in the budget.
func (b *Budget) CanFit(n int) bool {
	return b.Available() >= n
}

// Use charges n tokens against the budget. Returns false (and charges
// nothing) if n would exceed what's available.
func (b *Budget) Use(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.maxTokens-b.reservedTokens-b.usedTokens {
		return false
	}
	b.usedTokens += n
	return true
}

// Free returns n tokens to the budget, e.g. after a sub-LLM response was
// summarized down to a smaller footprint than initially reserved.
func (b *Budget) Free(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usedTokens -= n
	if b.usedTokens < 0 {
		b.usedTokens = 0
	}
}

// UsagePercentage returns the fraction (0-100) of the input-eligible
// budget consumed so far.
func (b *Budget) UsagePercentage() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	available := b.maxTokens - b.reservedTokens
	if available <= 0 {
		return 0
	}
	return float64(b.usedTokens) / float64(available) * 100
}

// IsCritical reports whether usage has crossed 85% of budget, the point at
// which the driver should aggressively chunk rather than pass context
// through whole.
func (b *Budget) IsCritical() bool {
	return b.UsagePercentage() >= 85.0
}
