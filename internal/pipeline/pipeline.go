package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"redscout/internal/config"
	"redscout/internal/filter"
	"redscout/internal/store"
	"redscout/internal/types"
	"redscout/internal/usage"
)

// RedditClient is the reddit collaborator surface the pipeline needs.
type RedditClient interface {
	Authenticate(ctx context.Context) error
	FetchListing(ctx context.Context, subreddit, ordering, timeframe string, limit int) ([]types.RawPost, error)
	FetchComments(ctx context.Context, postID string) ([]types.RawComment, error)
}

// Enricher produces one EnrichedPost per surviving post.
type Enricher interface {
	Enrich(ctx context.Context, post types.RawPost, comments []types.RawComment, agg *usage.Aggregator) (types.EnrichedPost, error)
}

// Reporter renders the narrative over the full batch. It degrades
// internally and never fails the run.
type Reporter interface {
	Render(ctx context.Context, batch []types.EnrichedPost, agg *usage.Aggregator) string
}

// Persister writes the per-run artifacts.
type Persister interface {
	SaveRun(batch []types.EnrichedPost, narrative string, entry store.RunLogEntry) (*store.RunArtifacts, error)
}

// RunContext holds all run-scoped state: token totals, call counters and
// the start time. One is created per Run call, so watch-mode runs never
// bleed totals into each other.
type RunContext struct {
	StartTime   time.Time
	Usage       *usage.Aggregator
	RedditCalls int
	LLMCalls    int
}

// Pipeline sequences authentication, listing, filtering, enrichment,
// reporting and persistence for one run, and owns the fatal-vs-continue
// decision on each failure.
type Pipeline struct {
	cfg       *config.Config
	client    RedditClient
	enricher  Enricher
	reporter  Reporter
	persister Persister
}

// New wires a pipeline from its collaborators.
func New(cfg *config.Config, client RedditClient, enricher Enricher, reporter Reporter, persister Persister) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		client:    client,
		enricher:  enricher,
		reporter:  reporter,
		persister: persister,
	}
}

// Run executes one full batch. A returned error means the run aborted with
// no artifacts written; artifacts from prior runs are untouched either way.
func (p *Pipeline) Run(ctx context.Context) error {
	rc := &RunContext{
		StartTime: time.Now(),
		Usage:     usage.NewAggregator(),
	}

	log.Info("Authenticating with reddit...")
	rc.RedditCalls++
	if err := p.client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	candidates := p.fetchListings(ctx, rc)

	cutoff := filter.NewCutoff(rc.StartTime, p.cfg.Reddit.CutoffDays, p.cfg.Reddit.RequireBody)
	kept := dedupe(cutoff.Apply(candidates))
	log.Infof("%d of %d posts survive the %d-day cutoff", len(kept), len(candidates), p.cfg.Reddit.CutoffDays)

	batch, err := p.enrichAll(ctx, rc, kept)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	log.Info("Rendering narrative report...")
	rc.LLMCalls++
	narrative := p.reporter.Render(ctx, batch, rc.Usage)

	inTokens, outTokens := rc.Usage.Totals()
	cost := rc.Usage.Cost(usage.Pricing{
		InputPerMTok:  p.cfg.Enrichment.PriceInPerMTok,
		OutputPerMTok: p.cfg.Enrichment.PriceOutPerMTok,
	})

	artifacts, err := p.persister.SaveRun(batch, narrative, store.RunLogEntry{
		Timestamp:     rc.StartTime,
		RedditCalls:   rc.RedditCalls,
		LLMCalls:      rc.LLMCalls,
		PostsAnalyzed: len(batch),
		ConfigLine:    p.configLine(),
		InputTokens:   inTokens,
		OutputTokens:  outTokens,
		Cost:          cost,
	})
	if err != nil {
		return fmt.Errorf("failed to persist run: %w", err)
	}

	log.Infof("Run complete: %d posts analyzed, %d input + %d output tokens, $%.4f total (summary: %s)",
		len(batch), inTokens, outTokens, cost.Total, artifacts.SummaryPath)
	return nil
}

// fetchListings retrieves one page per configured community and
// concatenates the results in configuration order. A failed community is
// logged and skipped; the run continues.
func (p *Pipeline) fetchListings(ctx context.Context, rc *RunContext) []types.RawPost {
	var candidates []types.RawPost
	for _, sub := range p.cfg.Reddit.Subreddits {
		rc.RedditCalls++
		posts, err := p.client.FetchListing(ctx, sub, p.cfg.Reddit.Ordering, p.cfg.Reddit.Timeframe, p.cfg.Reddit.PostsPerSubreddit)
		if err != nil {
			log.Errorf("Listing fetch for r/%s failed, skipping community: %v", sub, err)
			continue
		}
		log.Infof("Fetched %d posts from r/%s", len(posts), sub)
		candidates = append(candidates, posts...)
	}
	return candidates
}

// enrichAll fetches comments and enriches each post. With concurrency > 1
// several posts are in flight at once, but results land in an indexed slice
// so batch order always equals fetch order. Under the default failure
// policy the first enrichment error aborts everything; with skip_failed the
// post is kept flagged instead.
func (p *Pipeline) enrichAll(ctx context.Context, rc *RunContext, posts []types.RawPost) ([]types.EnrichedPost, error) {
	batch := make([]types.EnrichedPost, len(posts))

	// One comment fetch and one enrichment call are attempted per post.
	rc.RedditCalls += len(posts)
	rc.LLMCalls += len(posts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Concurrency)

	for i, post := range posts {
		g.Go(func() error {
			comments, err := p.client.FetchComments(gctx, post.ID)
			if err != nil {
				// Indistinguishable from "no comments" downstream.
				log.Warnf("Comment fetch for post %s failed, continuing without comments: %v", post.ID, err)
				comments = nil
			}

			enriched, err := p.enricher.Enrich(gctx, post, comments, rc.Usage)
			if err != nil {
				if p.cfg.Enrichment.SkipFailed {
					log.Errorf("Enrichment failed for post %s, flagging and continuing: %v", post.ID, err)
					batch[i] = types.EnrichedPost{
						RawPost:         post,
						Comments:        comments,
						EnrichedAt:      time.Now().Format(time.RFC3339),
						EnrichmentError: err.Error(),
					}
					return nil
				}
				return err
			}

			batch[i] = enriched
			log.Infof("Enriched post %s (r/%s)", post.ID, post.Subreddit)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}

// dedupe drops repeated post ids, keeping the first occurrence.
func dedupe(posts []types.RawPost) []types.RawPost {
	seen := make(map[string]bool, len(posts))
	out := posts[:0:0]
	for _, p := range posts {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// configLine is the one-line config snapshot recorded in the run log.
func (p *Pipeline) configLine() string {
	return fmt.Sprintf("subreddits=%s posts_per_subreddit=%d ordering=%s timeframe=%s cutoff_days=%d model=%s schema=%s",
		strings.Join(p.cfg.Reddit.Subreddits, ","),
		p.cfg.Reddit.PostsPerSubreddit,
		p.cfg.Reddit.Ordering,
		p.cfg.Reddit.Timeframe,
		p.cfg.Reddit.CutoffDays,
		p.cfg.Enrichment.Model,
		p.cfg.Enrichment.Schema,
	)
}
