package report

import (
	"context"
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"redscout/internal/enrich"
	"redscout/internal/types"
	"redscout/internal/usage"
)

// Placeholder is written as the narrative when report generation fails. The
// report call is best-effort relative to the summary JSON.
const Placeholder = "Report generation failed. See the summary JSON for the enriched batch."

const reportSystemPrompt = "You are a product researcher writing a narrative report over a batch of " +
	"analyzed community posts. Respond with well-structured markdown only."

// Renderer makes one additional model call over the full enriched batch to
// produce a narrative markdown summary.
type Renderer struct {
	provider enrich.Provider
	limiter  *rate.Limiter
}

// New creates a Renderer sharing the run's LLM rate limiter.
func New(provider enrich.Provider, limiter *rate.Limiter) *Renderer {
	return &Renderer{provider: provider, limiter: limiter}
}

// Render returns the narrative for the batch. On any failure it logs and
// degrades to Placeholder rather than failing the run. Token usage is
// forwarded to agg only when the call succeeds.
func (r *Renderer) Render(ctx context.Context, batch []types.EnrichedPost, agg *usage.Aggregator) string {
	serialized, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		log.Errorf("Failed to serialize batch for report: %v", err)
		return Placeholder
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			log.Errorf("Report limiter wait failed: %v", err)
			return Placeholder
		}
	}

	comp, err := r.provider.Complete(ctx, reportSystemPrompt, buildReportPrompt(serialized))
	if err != nil {
		log.Errorf("Report generation failed: %v", err)
		return Placeholder
	}

	agg.Add(comp.InputTokens, comp.OutputTokens)
	return comp.Content
}

func buildReportPrompt(serializedBatch []byte) string {
	var sb strings.Builder

	sb.WriteString("Below is a JSON array of community posts enriched with analysis, sentiment, ")
	sb.WriteString("opportunity scores, and pain points. Write a markdown report with exactly these sections:\n\n")
	sb.WriteString("1. **Summary** — post counts overall and per community.\n")
	sb.WriteString("2. **High-Opportunity Posts** — a table of posts with opportunity_score >= 4: title, community, score, one-line need.\n")
	sb.WriteString("3. **Pain Points by Community** — the key pain points grouped under each community.\n")
	sb.WriteString("4. **Sentiment Distribution** — counts per sentiment label.\n")
	sb.WriteString("5. **Cross-Community Themes** — needs or complaints appearing in more than one community.\n\n")
	sb.WriteString("## Enriched Posts\n\n```json\n")
	sb.Write(serializedBatch)
	sb.WriteString("\n```\n")

	return sb.String()
}
