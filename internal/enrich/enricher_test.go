package enrich

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"redscout/internal/config"
	"redscout/internal/types"
	"redscout/internal/usage"
)

// fakeProvider returns a canned completion or error.
type fakeProvider struct {
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Content: f.content, InputTokens: 100, OutputTokens: 40}, nil
}

func newTestEnricher(t *testing.T, p Provider) *Enricher {
	t.Helper()
	e, err := New(p, config.EnrichmentConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Schema:   "v2",
	}, nil, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

var testPost = types.RawPost{
	ID:         "abc123",
	Title:      "Struggling to track invoices",
	SelfText:   "I run a tiny shop and lose track of unpaid invoices constantly.",
	Subreddit:  "smallbusiness",
	CreatedUTC: 1767000000,
}

func TestEnrichParsesStructuredReply(t *testing.T) {
	reply := `{"analysis": "Owner needs invoice tracking.", "sentiment": "unsolved_problem", ` +
		`"solution_quality": "spreadsheets only", "opportunity_score": 4, "key_pain_points": ["manual tracking", "missed payments"]}`
	e := newTestEnricher(t, &fakeProvider{content: reply})
	agg := usage.NewAggregator()

	got, err := e.Enrich(context.Background(), testPost, nil, agg)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}

	if got.Analysis != "Owner needs invoice tracking." {
		t.Errorf("Analysis = %q", got.Analysis)
	}
	if got.Sentiment != "unsolved_problem" {
		t.Errorf("Sentiment = %q, want unsolved_problem", got.Sentiment)
	}
	if got.OpportunityScore != 4 {
		t.Errorf("OpportunityScore = %d, want 4", got.OpportunityScore)
	}
	if len(got.KeyPainPoints) != 2 {
		t.Errorf("KeyPainPoints = %v, want 2 entries", got.KeyPainPoints)
	}
	if got.EnrichedAt == "" {
		t.Errorf("EnrichedAt is empty")
	}

	in, out := agg.Totals()
	if in != 100 || out != 40 {
		t.Errorf("usage totals = %d/%d, want 100/40", in, out)
	}
}

func TestEnrichStripsMarkdownFences(t *testing.T) {
	reply := "```json\n{\"analysis\": \"fenced\", \"sentiment\": \"discussion\"}\n```"
	e := newTestEnricher(t, &fakeProvider{content: reply})

	got, err := e.Enrich(context.Background(), testPost, nil, usage.NewAggregator())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got.Analysis != "fenced" || got.Sentiment != "discussion" {
		t.Errorf("fenced reply not parsed: analysis=%q sentiment=%q", got.Analysis, got.Sentiment)
	}
}

func TestEnrichClampsOutOfRangeFields(t *testing.T) {
	reply := `{"analysis": "a", "sentiment": "very_happy", "opportunity_score": 9, ` +
		`"key_pain_points": ["p1", "p2", "p3", "p4", "p5"]}`
	e := newTestEnricher(t, &fakeProvider{content: reply})

	got, err := e.Enrich(context.Background(), testPost, nil, usage.NewAggregator())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got.Sentiment != "" {
		t.Errorf("Sentiment = %q, want empty for out-of-set label", got.Sentiment)
	}
	if got.OpportunityScore != 0 {
		t.Errorf("OpportunityScore = %d, want 0 for out-of-range value", got.OpportunityScore)
	}
	if len(got.KeyPainPoints) != 3 {
		t.Errorf("KeyPainPoints has %d entries, want 3 after truncation", len(got.KeyPainPoints))
	}
}

func TestEnrichFallbackOnMalformedReply(t *testing.T) {
	e := newTestEnricher(t, &fakeProvider{content: "not json"})
	agg := usage.NewAggregator()

	got, err := e.Enrich(context.Background(), testPost, nil, agg)
	if err != nil {
		t.Fatalf("Enrich() must never fail on a malformed payload, got %v", err)
	}

	if got.Analysis != "not json" {
		t.Errorf("Analysis = %q, want the raw reply text", got.Analysis)
	}
	if got.Sentiment != "" {
		t.Errorf("Sentiment = %q, want empty on fallback", got.Sentiment)
	}
	if got.OpportunityScore != 0 {
		t.Errorf("OpportunityScore = %d, want 0 on fallback", got.OpportunityScore)
	}

	// Token accounting happens even on the fallback path.
	in, out := agg.Totals()
	if in != 100 || out != 40 {
		t.Errorf("usage totals = %d/%d, want 100/40 on fallback", in, out)
	}
}

func TestEnrichFallbackOnNonObjectReply(t *testing.T) {
	// "null" decodes cleanly into the zero object, which must not pass for
	// a real classification.
	e := newTestEnricher(t, &fakeProvider{content: "null"})

	got, err := e.Enrich(context.Background(), testPost, nil, usage.NewAggregator())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got.Analysis != "null" {
		t.Errorf("Analysis = %q, want the raw reply text", got.Analysis)
	}
	if got.Sentiment != "" || got.OpportunityScore != 0 {
		t.Errorf("classification fields set on non-object reply: sentiment=%q score=%d", got.Sentiment, got.OpportunityScore)
	}
}

// flakyProvider fails the first failures calls and then succeeds.
type flakyProvider struct {
	failures int
	err      error
	content  string
	calls    int
}

func (f *flakyProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Completion{Content: f.content, InputTokens: 100, OutputTokens: 40}, nil
}

func TestEnrichRetriesTransientFailure(t *testing.T) {
	p := &flakyProvider{
		failures: 1,
		err:      fmt.Errorf("api returned status 429: too many requests"),
		content:  `{"analysis": "recovered", "sentiment": "discussion"}`,
	}
	e := newTestEnricher(t, p)
	e.maxRetries = 1
	e.baseDelay = time.Millisecond

	got, err := e.Enrich(context.Background(), testPost, nil, usage.NewAggregator())
	if err != nil {
		t.Fatalf("Enrich() error = %v, want success after retry", err)
	}
	if p.calls != 2 {
		t.Errorf("provider called %d times, want 2 (initial + one retry)", p.calls)
	}
	if got.Analysis != "recovered" {
		t.Errorf("Analysis = %q, want recovered", got.Analysis)
	}
}

func TestEnrichDoesNotRetryNonTransient(t *testing.T) {
	p := &fakeProvider{err: fmt.Errorf("api returned status 401: unauthorized")}
	e := newTestEnricher(t, p)
	e.maxRetries = 3
	e.baseDelay = time.Millisecond

	if _, err := e.Enrich(context.Background(), testPost, nil, usage.NewAggregator()); err == nil {
		t.Fatalf("Enrich() = nil error, want failure on non-transient error")
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1 for a non-transient error", p.calls)
	}
}

func TestEnrichRetryBudgetExhausted(t *testing.T) {
	p := &fakeProvider{err: fmt.Errorf("model is overloaded")}
	e := newTestEnricher(t, p)
	e.maxRetries = 2
	e.baseDelay = time.Millisecond

	if _, err := e.Enrich(context.Background(), testPost, nil, usage.NewAggregator()); err == nil {
		t.Fatalf("Enrich() = nil error, want failure once retries are spent")
	}
	if p.calls != 3 {
		t.Errorf("provider called %d times, want 3 (initial + 2 retries)", p.calls)
	}
}

func TestEnrichServiceFailureIsFatal(t *testing.T) {
	p := &fakeProvider{err: fmt.Errorf("api returned status 429: too many requests")}
	e := newTestEnricher(t, p)

	_, err := e.Enrich(context.Background(), testPost, nil, usage.NewAggregator())
	if err == nil {
		t.Fatalf("Enrich() = nil error, want failure with max_retries=0")
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1 with max_retries=0", p.calls)
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		err  string
		want bool
	}{
		{"api returned status 429: slow down", true},
		{"Too Many Requests", true},
		{"rate limit exceeded", true},
		{"model is overloaded", true},
		{"api returned status 401: unauthorized", false},
		{"connection refused", false},
	}
	for _, c := range cases {
		if got := transient(fmt.Errorf("%s", c.err)); got != c.want {
			t.Errorf("transient(%q) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestPromptLabelsPerSchema(t *testing.T) {
	v2, _ := SchemaFor("v2")
	p2 := buildPrompt(testPost, nil, v2)
	for _, label := range SentimentLabelsV2 {
		if !strings.Contains(p2, label) {
			t.Errorf("v2 prompt missing label %q", label)
		}
	}
	if !strings.Contains(p2, "opportunity_score") {
		t.Errorf("v2 prompt missing scoring instructions")
	}

	v1, _ := SchemaFor("v1")
	p1 := buildPrompt(testPost, nil, v1)
	for _, label := range SentimentLabelsV1 {
		if !strings.Contains(p1, label) {
			t.Errorf("v1 prompt missing label %q", label)
		}
	}
	if strings.Contains(p1, "opportunity_score") {
		t.Errorf("v1 prompt should not ask for scoring fields")
	}
}

func TestPromptIncludesComments(t *testing.T) {
	v2, _ := SchemaFor("v2")
	comments := []types.RawComment{
		{Author: "helper", Body: "Try a spreadsheet", Score: 12},
	}
	p := buildPrompt(testPost, comments, v2)
	if !strings.Contains(p, "Try a spreadsheet") {
		t.Errorf("prompt missing comment body")
	}
	if !strings.Contains(p, "u/helper") {
		t.Errorf("prompt missing comment author")
	}
}

func TestSchemaForUnknownVersion(t *testing.T) {
	if _, err := SchemaFor("v3"); err == nil {
		t.Errorf("SchemaFor(v3) = nil error, want failure")
	}
}
