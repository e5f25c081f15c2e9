package usage

import (
	"math"
	"sync"
)

// Pricing holds per-million-token prices for the configured model.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost is the monetary breakdown derived from token totals.
type Cost struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Total  float64 `json:"total"`
}

// Aggregator accumulates token counts for one run. It is safe for
// concurrent use so bounded-concurrency enrichment can share it.
type Aggregator struct {
	mu           sync.Mutex
	inputTokens  int64
	outputTokens int64
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add records one model call's token usage.
func (a *Aggregator) Add(inputTokens, outputTokens int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputTokens += inputTokens
	a.outputTokens += outputTokens
}

// Totals returns the accumulated input and output token counts.
func (a *Aggregator) Totals() (int64, int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputTokens, a.outputTokens
}

// Cost derives the run cost from the accumulated totals, each component
// rounded to 4 decimal places.
func (a *Aggregator) Cost(p Pricing) Cost {
	in, out := a.Totals()
	inputCost := round4(float64(in) * p.InputPerMTok / 1e6)
	outputCost := round4(float64(out) * p.OutputPerMTok / 1e6)
	return Cost{
		Input:  inputCost,
		Output: outputCost,
		Total:  round4(inputCost + outputCost),
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
