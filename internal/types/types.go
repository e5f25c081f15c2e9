package types

// RawPost is a reddit post as returned by a listing call. It is created by
// the listing fetcher and never mutated afterwards; fields missing on the
// wire are left at their zero values rather than dropping the post.
type RawPost struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SelfText    string `json:"selftext"`
	Permalink   string `json:"permalink"`
	Author      string `json:"author"`
	Subreddit   string `json:"subreddit"`
	CreatedUTC  int64  `json:"created_utc"`
	NumComments int    `json:"num_comments"`
}

// RawComment is a top-level comment on a post, in the source's "best"
// ranking order.
type RawComment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}

// EnrichedPost combines a RawPost with the LLM analysis derived from it and
// the comments that were actually fed to the model. Created once per post
// and immutable thereafter.
type EnrichedPost struct {
	RawPost

	Analysis         string       `json:"analysis"`
	Sentiment        string       `json:"sentiment"`
	SolutionQuality  string       `json:"solution_quality,omitempty"`
	OpportunityScore int          `json:"opportunity_score,omitempty"`
	KeyPainPoints    []string     `json:"key_pain_points,omitempty"`
	Comments         []RawComment `json:"comments_analyzed"`

	// EnrichedAt is stamped after the model reply is received, RFC 3339
	// in the local offset.
	EnrichedAt string `json:"enriched_at"`

	// EnrichmentError is set instead of the analysis fields when the run
	// is configured to keep posts whose enrichment call failed.
	EnrichmentError string `json:"enrichment_error,omitempty"`
}
