package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"redscout/internal/config"
	"redscout/internal/types"
)

const (
	defaultAuthURL = "https://www.reddit.com"
	defaultAPIURL  = "https://oauth.reddit.com"

	// maxComments caps how many top comments are kept per post.
	maxComments = 10
)

// Client talks to the reddit JSON API. Authenticate must be called before
// any fetch; the resulting bearer token is held for the client's lifetime.
type Client struct {
	httpClient *http.Client
	authURL    string
	apiURL     string

	username     string
	password     string
	clientID     string
	clientSecret string
	userAgent    string

	token string
}

// NewClient creates a reddit client from config.
func NewClient(cfg config.RedditConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		authURL:      defaultAuthURL,
		apiURL:       defaultAPIURL,
		username:     cfg.Username,
		password:     cfg.Password,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		userAgent:    cfg.UserAgent,
	}
}

// Authenticate exchanges the account credentials for a short-lived access
// token via the password grant. Failure here is fatal to the run.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("failed to parse token response: %w (body was: %s)", err, string(body))
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("identity service returned no access token (body was: %s)", string(body))
	}

	c.token = tok.AccessToken
	return nil
}

// FetchListing retrieves one page of posts for a subreddit. The timeframe is
// sent only for the top and most-debated orderings. Posts with missing
// fields are emitted with those fields defaulted, never dropped.
func (c *Client) FetchListing(ctx context.Context, subreddit, ordering, timeframe string, limit int) ([]types.RawPost, error) {
	sort, ok := config.Orderings[ordering]
	if !ok {
		return nil, fmt.Errorf("unknown ordering %q", ordering)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if sort == "top" || sort == "controversial" {
		t, ok := config.Timeframes[timeframe]
		if !ok {
			return nil, fmt.Errorf("unknown timeframe %q", timeframe)
		}
		q.Set("t", t)
	}

	endpoint := fmt.Sprintf("%s/r/%s/%s?%s", c.apiURL, subreddit, sort, q.Encode())
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("listing fetch for r/%s failed: %w", subreddit, err)
	}

	var envelope listingEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse listing for r/%s: %w", subreddit, err)
	}

	posts := make([]types.RawPost, 0, len(envelope.Data.Children))
	for _, child := range envelope.Data.Children {
		d := child.Data
		posts = append(posts, types.RawPost{
			ID:          d.ID,
			Title:       d.Title,
			SelfText:    d.SelfText,
			Permalink:   d.Permalink,
			Author:      d.Author,
			Subreddit:   d.Subreddit,
			CreatedUTC:  int64(d.CreatedUTC),
			NumComments: d.NumComments,
		})
	}

	return posts, nil
}

// FetchComments retrieves the top comments for a post, in the source's
// "best" ranking order, capped at 10. Removed and automated-moderator
// authors and bodiless comments are excluded.
func (c *Client) FetchComments(ctx context.Context, postID string) ([]types.RawComment, error) {
	q := url.Values{}
	q.Set("sort", "best")
	q.Set("depth", "1")
	q.Set("limit", strconv.Itoa(3 * maxComments))

	endpoint := fmt.Sprintf("%s/comments/%s?%s", c.apiURL, postID, q.Encode())
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("comment fetch for post %s failed: %w", postID, err)
	}

	// The comments endpoint returns a two-element array: the post listing
	// followed by the comment listing.
	var pages []listingEnvelope
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("failed to parse comments for post %s: %w", postID, err)
	}
	if len(pages) < 2 {
		return nil, nil
	}

	var comments []types.RawComment
	for _, child := range pages[1].Data.Children {
		d := child.Data
		if skipComment(d.Author, d.Body) {
			continue
		}
		comments = append(comments, types.RawComment{
			Author: d.Author,
			Body:   d.Body,
			Score:  d.Score,
		})
		if len(comments) == maxComments {
			break
		}
	}

	return comments, nil
}

func skipComment(author, body string) bool {
	switch author {
	case "", "[deleted]", "AutoModerator":
		return true
	}
	switch body {
	case "", "[deleted]", "[removed]":
		return true
	}
	return false
}

// get issues an authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit api returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
