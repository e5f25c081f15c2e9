package reddit

// tokenResponse is the reply from the OAuth password-grant exchange.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

// listingEnvelope is the common wrapper around reddit listing replies. The
// same shape covers both post listings and comment listings; fields we do
// not consume are simply not declared.
type listingEnvelope struct {
	Data struct {
		Children []struct {
			Data itemData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// itemData carries the union of post and comment fields we read. Counts and
// scores are parsed into native numeric types here, at the ingestion
// boundary; absent fields decode to their zero values.
type itemData struct {
	// post fields
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`

	// shared / comment fields
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}
