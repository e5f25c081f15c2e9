package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"redscout/internal/config"
)

func newTestClient(authURL, apiURL string) *Client {
	c := NewClient(config.RedditConfig{
		Username:     "scout",
		Password:     "hunter2",
		ClientID:     "cid",
		ClientSecret: "secret",
		UserAgent:    "redscout-test/1.0",
	})
	if authURL != "" {
		c.authURL = authURL
	}
	if apiURL != "" {
		c.apiURL = apiURL
	}
	return c
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/access_token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "secret" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "password" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("username") != "scout" {
			t.Errorf("username = %q", r.Form.Get("username"))
		}
		fmt.Fprint(w, `{"access_token": "tok-1", "token_type": "bearer", "expires_in": 3600}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if c.token != "tok-1" {
		t.Errorf("token = %q, want tok-1", c.token)
	}
}

func TestAuthenticateNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "invalid_grant"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	if err := c.Authenticate(context.Background()); err == nil {
		t.Fatalf("Authenticate() = nil error for a tokenless reply")
	}
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	if err := c.Authenticate(context.Background()); err == nil {
		t.Fatalf("Authenticate() = nil error for a 401 reply")
	}
}

func TestFetchListingTimeframe(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		fmt.Fprint(w, `{"data": {"children": []}}`)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	c.token = "tok"

	// top ordering carries the timeframe
	if _, err := c.FetchListing(context.Background(), "widgets", "top", "week", 25); err != nil {
		t.Fatalf("FetchListing() error = %v", err)
	}
	if gotPath != "/r/widgets/top" {
		t.Errorf("path = %q, want /r/widgets/top", gotPath)
	}
	if want := "limit=25&t=week"; gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}

	// newest ordering omits it
	if _, err := c.FetchListing(context.Background(), "widgets", "newest", "week", 25); err != nil {
		t.Fatalf("FetchListing() error = %v", err)
	}
	if gotPath != "/r/widgets/new" {
		t.Errorf("path = %q, want /r/widgets/new", gotPath)
	}
	if want := "limit=25"; gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
}

func TestFetchListingDefaultsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"children": [
			{"data": {"id": "p1", "title": "full post", "selftext": "body", "author": "alice",
				"subreddit": "widgets", "created_utc": 1767000000.0, "num_comments": 3, "permalink": "/r/widgets/p1"}},
			{"data": {"id": "p2"}}
		]}}`)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	c.token = "tok"

	posts, err := c.FetchListing(context.Background(), "widgets", "recent-hot", "week", 25)
	if err != nil {
		t.Fatalf("FetchListing() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 (sparse posts must not be dropped)", len(posts))
	}

	full := posts[0]
	if full.CreatedUTC != 1767000000 || full.NumComments != 3 || full.Author != "alice" {
		t.Errorf("full post parsed wrong: %+v", full)
	}

	sparse := posts[1]
	if sparse.ID != "p2" {
		t.Errorf("sparse post ID = %q", sparse.ID)
	}
	if sparse.Title != "" || sparse.SelfText != "" || sparse.CreatedUTC != 0 || sparse.NumComments != 0 {
		t.Errorf("sparse post fields not defaulted: %+v", sparse)
	}
}

func TestFetchComments(t *testing.T) {
	// 12 good comments plus filtered ones; cap is 10.
	children := `{"data": {"author": "AutoModerator", "body": "I am a bot", "score": 1}},
		{"data": {"author": "[deleted]", "body": "gone", "score": 5}},
		{"data": {"author": "ghost", "body": "", "score": 2}},
		{"data": {"author": "mod", "body": "[removed]", "score": 2}}`
	for i := 1; i <= 12; i++ {
		children += fmt.Sprintf(`,{"data": {"author": "user%d", "body": "comment %d", "score": %d}}`, i, i, 100-i)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/comments/p1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprintf(w, `[{"data": {"children": []}}, {"data": {"children": [%s]}}]`, children)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	c.token = "tok"

	comments, err := c.FetchComments(context.Background(), "p1")
	if err != nil {
		t.Fatalf("FetchComments() error = %v", err)
	}
	if len(comments) != 10 {
		t.Fatalf("got %d comments, want 10 (cap)", len(comments))
	}
	// Source order preserved, sentinels excluded.
	for i, cm := range comments {
		want := fmt.Sprintf("user%d", i+1)
		if cm.Author != want {
			t.Errorf("comments[%d].Author = %q, want %q", i, cm.Author, want)
		}
	}
	if comments[0].Score != 99 {
		t.Errorf("comments[0].Score = %d, want 99", comments[0].Score)
	}
}

func TestFetchCommentsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	c.token = "tok"

	if _, err := c.FetchComments(context.Background(), "p1"); err == nil {
		t.Fatalf("FetchComments() = nil error for a 500 reply")
	}
}
