package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"

	"github.com/korvad/korvadweb/internal/post"
	"github.com/korvad/korvadweb/internal/security"
	"github.com/korvad/korvadweb/internal/view"
)

func TestFeed_RSSListsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.postForm(t, "/admin/new-post", url.Values{"title": {"Primero"}, "content": {"uno"}})
	env.postForm(t, "/admin/new-post", url.Values{"title": {"Segundo"}, "content": {"**dos**"}})

	resp := env.get(t, "/blog/feed.xml")
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.status)
	}
	if ct := resp.header.Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}

	feed, err := gofeed.NewParser().ParseString(resp.body)
	if err != nil {
		t.Fatalf("feed does not parse: %v", err)
	}
	if feed.FeedType != "rss" {
		t.Errorf("FeedType = %q, want rss", feed.FeedType)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(feed.Items))
	}
	if feed.Items[0].Title != "Segundo" {
		t.Errorf("first item = %q, want Segundo", feed.Items[0].Title)
	}
	if feed.Items[0].Link != "https://korvad.test/blog/2" {
		t.Errorf("link = %q, want https://korvad.test/blog/2", feed.Items[0].Link)
	}
	if !strings.Contains(feed.Items[0].Description, "<strong>dos</strong>") {
		t.Errorf("description should carry rendered markdown: %q", feed.Items[0].Description)
	}
}

func TestFeed_RSSHonoursItemLimit(t *testing.T) {
	repo := newMemPostRepo()
	for i := 1; i <= 5; i++ {
		repo.Create(t.Context(), fmt.Sprintf("Post %d", i), "x")
	}
	renderer, err := view.New(security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	h := NewFeedHandler(post.NewService(repo, nil), renderer, FeedConfig{BaseURL: "https://korvad.test", ItemLimit: 3})

	w := httptest.NewRecorder()
	h.RSS(w, httptest.NewRequest(http.MethodGet, "/blog/feed.xml", nil))

	feed, err := gofeed.NewParser().ParseString(w.Body.String())
	if err != nil {
		t.Fatalf("feed does not parse: %v", err)
	}
	if len(feed.Items) != 3 {
		t.Errorf("items = %d, want 3", len(feed.Items))
	}
	if feed.Items[0].Title != "Post 5" {
		t.Errorf("first item = %q, want Post 5", feed.Items[0].Title)
	}
}

func TestFeed_EmptyRSS(t *testing.T) {
	resp := newTestEnv(t).get(t, "/blog/feed.xml")
	feed, err := gofeed.NewParser().ParseString(resp.body)
	if err != nil {
		t.Fatalf("feed does not parse: %v", err)
	}
	if len(feed.Items) != 0 {
		t.Errorf("items = %d, want 0", len(feed.Items))
	}
}

func TestFeed_Sitemap(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.postForm(t, "/admin/new-post", url.Values{"title": {"Hello"}, "content": {"World"}})

	resp := env.get(t, "/sitemap.xml")
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.status)
	}
	for _, loc := range []string{
		"<loc>https://korvad.test/</loc>",
		"<loc>https://korvad.test/precios</loc>",
		"<loc>https://korvad.test/blog/1</loc>",
	} {
		if !strings.Contains(resp.body, loc) {
			t.Errorf("sitemap missing %s", loc)
		}
	}
	if !strings.Contains(resp.body, "<lastmod>") {
		t.Error("post entries should carry lastmod")
	}
}
