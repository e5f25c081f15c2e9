package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"redscout/internal/config"
	"redscout/internal/store"
	"redscout/internal/types"
	"redscout/internal/usage"
)

// enrichmentResult is the JSON object the model is instructed to return.
type enrichmentResult struct {
	Analysis         string   `json:"analysis"`
	Sentiment        string   `json:"sentiment"`
	SolutionQuality  string   `json:"solution_quality"`
	OpportunityScore int      `json:"opportunity_score"`
	KeyPainPoints    []string `json:"key_pain_points"`
}

// Enricher sends one structured-output prompt per post to the LLM provider
// and normalizes the reply into a typed record.
type Enricher struct {
	provider     Provider
	schema       Schema
	limiter      *rate.Limiter
	maxRetries   int
	providerName string
	model        string
	captureDir   string // "" disables prompt/response capture
	baseDelay    time.Duration
}

// New creates an Enricher. The limiter may be shared with the report
// renderer so the RPM cap covers all LLM traffic.
func New(p Provider, cfg config.EnrichmentConfig, limiter *rate.Limiter, captureDir string) (*Enricher, error) {
	schema, err := SchemaFor(cfg.Schema)
	if err != nil {
		return nil, err
	}

	return &Enricher{
		provider:     p,
		schema:       schema,
		limiter:      limiter,
		maxRetries:   cfg.MaxRetries,
		providerName: cfg.Provider,
		model:        cfg.Model,
		captureDir:   captureDir,
		baseDelay:    2 * time.Second,
	}, nil
}

// Enrich invokes the model once for the post and returns the normalized
// record. Token usage from the reply is forwarded to agg unconditionally,
// including when the payload turns out malformed. A service-call failure is
// returned as an error; payload problems never are.
func (e *Enricher) Enrich(ctx context.Context, post types.RawPost, comments []types.RawComment, agg *usage.Aggregator) (types.EnrichedPost, error) {
	prompt := buildPrompt(post, comments, e.schema)

	comp, err := e.complete(ctx, systemPrompt, prompt)
	if err != nil {
		return types.EnrichedPost{}, fmt.Errorf("enrichment call for post %s failed: %w", post.ID, err)
	}

	agg.Add(comp.InputTokens, comp.OutputTokens)

	if e.captureDir != "" {
		if _, err := store.SaveLLMExchange(e.captureDir, store.LLMExchange{
			Timestamp: time.Now(),
			Provider:  e.providerName,
			Model:     e.model,
			Prompt:    prompt,
			Response:  comp.Content,
		}); err != nil {
			log.Warnf("Failed to capture LLM exchange: %v", err)
		}
	}

	return e.normalize(post, comments, comp.Content), nil
}

// complete calls the provider, waiting on the rate limiter first and
// retrying transient failures with exponential backoff up to maxRetries.
func (e *Enricher) complete(ctx context.Context, system, user string) (*Completion, error) {
	for attempt := 0; ; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("limiter wait: %w", err)
			}
		}

		comp, err := e.provider.Complete(ctx, system, user)
		if err == nil {
			return comp, nil
		}
		if attempt >= e.maxRetries || !transient(err) {
			return nil, err
		}

		delay := e.baseDelay * time.Duration(1<<attempt)
		log.Warnf("Transient LLM failure, retrying in %v (%d/%d): %v", delay, attempt+1, e.maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// transient reports whether a provider error looks like a rate-limit or
// overload condition worth retrying.
func transient(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "overloaded")
}

// normalize turns the raw model reply into an EnrichedPost. A reply that is
// not parseable as the expected object degrades to the raw text as analysis
// with classification fields empty; this path never fails.
func (e *Enricher) normalize(post types.RawPost, comments []types.RawComment, raw string) types.EnrichedPost {
	enriched := types.EnrichedPost{
		RawPost:    post,
		Comments:   comments,
		EnrichedAt: time.Now().Format(time.RFC3339),
	}

	// A reply like "null" or a bare string decodes without error but carries
	// no object, so require a leading brace before trusting the unmarshal.
	stripped := stripFences(raw)
	var res enrichmentResult
	if !strings.HasPrefix(stripped, "{") {
		log.Warnf("Enrichment reply for post %s is not a JSON object, keeping raw text", post.ID)
		enriched.Analysis = raw
		return enriched
	}
	if err := json.Unmarshal([]byte(stripped), &res); err != nil {
		log.Warnf("Enrichment reply for post %s is not valid JSON, keeping raw text: %v", post.ID, err)
		enriched.Analysis = raw
		return enriched
	}

	enriched.Analysis = res.Analysis
	if e.schema.ValidLabel(res.Sentiment) {
		enriched.Sentiment = res.Sentiment
	} else if res.Sentiment != "" {
		log.Warnf("Post %s: dropping sentiment %q, not in the %s label set", post.ID, res.Sentiment, e.schema.Version)
	}

	if e.schema.Scored() {
		enriched.SolutionQuality = res.SolutionQuality
		if res.OpportunityScore >= 1 && res.OpportunityScore <= 5 {
			enriched.OpportunityScore = res.OpportunityScore
		}
		if len(res.KeyPainPoints) > 3 {
			res.KeyPainPoints = res.KeyPainPoints[:3]
		}
		enriched.KeyPainPoints = res.KeyPainPoints
	}

	return enriched
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
