package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/snabb/sitemap"

	"github.com/korvad/korvadweb/internal/middleware"
)

// ContentRenderer は記事本文をHTMLに変換する。view.Rendererが実装する。
type ContentRenderer interface {
	Markdown(source string) template.HTML
}

// FeedConfig はRSSフィードとサイトマップの設定。
type FeedConfig struct {
	BaseURL   string // 末尾スラッシュなしの公開URL
	ItemLimit int    // フィードに含める記事数
}

// FeedHandler はブログのRSSフィードとサイトマップを提供する。
type FeedHandler struct {
	posts   PostServiceInterface
	content ContentRenderer
	config  FeedConfig
	now     func() time.Time
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(posts PostServiceInterface, content ContentRenderer, config FeedConfig) *FeedHandler {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.ItemLimit <= 0 {
		config.ItemLimit = 20
	}
	return &FeedHandler{
		posts:   posts,
		content: content,
		config:  config,
		now:     time.Now,
	}
}

// staticPages はサイトマップに載せる固定ページのパス。
var staticPages = []string{"/", "/precios", "/contacto", "/blog"}

// RSS は最新記事のRSS 2.0フィードを返す。
// GET /blog/feed.xml
func (h *FeedHandler) RSS(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.RecentPosts(r.Context(), h.config.ItemLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated := h.now()
	if len(posts) > 0 {
		updated = posts[0].CreatedAt
	}

	feed := &feeds.Feed{
		Title:       "Blog de Korvad",
		Link:        &feeds.Link{Href: h.config.BaseURL + "/blog"},
		Description: "SEO, AEO y GEO: novedades y guías de Korvad",
		Created:     updated,
	}

	for _, p := range posts {
		link := fmt.Sprintf("%s/blog/%d", h.config.BaseURL, p.ID)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          link,
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Description: string(h.content.Markdown(p.Content)),
			Created:     p.CreatedAt,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		slog.Error("failed to build RSS feed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rss))
}

// Sitemap は固定ページと全記事のサイトマップを返す。
// GET /sitemap.xml
func (h *FeedHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPosts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	sm := sitemap.New()
	for _, path := range staticPages {
		sm.Add(&sitemap.URL{
			Loc:        h.config.BaseURL + path,
			ChangeFreq: sitemap.Weekly,
		})
	}
	for _, p := range posts {
		created := p.CreatedAt
		sm.Add(&sitemap.URL{
			Loc:        fmt.Sprintf("%s/blog/%d", h.config.BaseURL, p.ID),
			LastMod:    &created,
			ChangeFreq: sitemap.Monthly,
		})
	}

	buf := new(bytes.Buffer)
	if _, err := sm.WriteTo(buf); err != nil {
		slog.Error("failed to build sitemap", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
