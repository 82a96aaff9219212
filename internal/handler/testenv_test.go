package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/korvad/korvadweb/internal/auth"
	"github.com/korvad/korvadweb/internal/catalog"
	"github.com/korvad/korvadweb/internal/middleware"
	"github.com/korvad/korvadweb/internal/model"
	"github.com/korvad/korvadweb/internal/post"
	"github.com/korvad/korvadweb/internal/security"
	"github.com/korvad/korvadweb/internal/view"
)

const testPassword = "s3creto"

// --- インメモリのリポジトリ ---

// memPostRepo はrepository.PostRepositoryのインメモリ実装。
type memPostRepo struct {
	mu     sync.Mutex
	posts  map[int64]*model.Post
	nextID int64
	base   time.Time
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{
		posts:  make(map[int64]*model.Post),
		nextID: 1,
		base:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memPostRepo) List(_ context.Context) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := make([]*model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		cp := *p
		posts = append(posts, &cp)
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

func (m *memPostRepo) ListRecent(ctx context.Context, limit int) ([]*model.Post, error) {
	posts, _ := m.List(ctx)
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (m *memPostRepo) FindByID(_ context.Context, id int64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPostRepo) Create(_ context.Context, title, content string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &model.Post{
		ID:        m.nextID,
		Title:     title,
		Content:   content,
		CreatedAt: m.base.Add(time.Duration(m.nextID) * time.Minute),
	}
	m.posts[p.ID] = p
	m.nextID++
	cp := *p
	return &cp, nil
}

func (m *memPostRepo) Update(_ context.Context, id int64, title, content string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, nil
	}
	p.Title = title
	p.Content = content
	return true, nil
}

func (m *memPostRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func (m *memPostRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

// memSessionRepo はrepository.SessionRepositoryのインメモリ実装。
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *memSessionRepo) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Expired(time.Now()) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func (m *memSessionRepo) all() []model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

// pingFunc はHealthCheckerを関数で実装する。
type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// --- テスト環境 ---

// testEnv は実際のルーター・サービス・テンプレートをインメモリのリポジトリで動かす。
type testEnv struct {
	server   *httptest.Server
	client   *http.Client
	posts    *memPostRepo
	sessions *memSessionRepo
}

type testResponse struct {
	status int
	header http.Header
	body   string
}

// newTestEnv はテスト環境を構築する。optsでRouterDepsを上書きできる。
func newTestEnv(t *testing.T, opts ...func(*RouterDeps)) *testEnv {
	t.Helper()

	posts := newMemPostRepo()
	sessions := newMemSessionRepo()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	cred, err := auth.NewCredentialFromHash(string(hash))
	if err != nil {
		t.Fatalf("failed to build credential: %v", err)
	}

	postService := post.NewService(posts, nil)
	authService := auth.NewService(cred, sessions, nil, auth.ServiceConfig{SessionMaxAge: 3600})
	guard := middleware.NewSessionGuard(
		middleware.NewCookieStore([]byte("test-session-secret-0123456789ab"), middleware.CookieOptions{MaxAge: 3600}),
		authService,
	)

	renderer, err := view.New(security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}

	limiter := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(5, 120))
	t.Cleanup(limiter.Stop)

	deps := &RouterDeps{
		Logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		SessionGuard:  guard,
		RateLimiter:   limiter,
		Pages:         NewPageHandler(renderer, catalog.Default()),
		Blog:          NewBlogHandler(postService, renderer),
		Admin:         NewAdminHandler(authService, guard, postService, renderer),
		Feed:          NewFeedHandler(postService, renderer, FeedConfig{BaseURL: "https://korvad.test/"}),
		Health:        NewHealthHandler(pingFunc(func(context.Context) error { return nil })),
		StaticHandler: view.StaticHandler(),
	}
	for _, opt := range opts {
		opt(deps)
	}

	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	return &testEnv{
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		posts:    posts,
		sessions: sessions,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) testResponse {
	t.Helper()
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return testResponse{status: resp.StatusCode, header: resp.Header, body: string(body)}
}

func (e *testEnv) get(t *testing.T, path string) testResponse {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return e.do(t, req)
}

// postForm はCSRFトークン付きでフォームを送信する。
func (e *testEnv) postForm(t *testing.T, path string, values url.Values) testResponse {
	t.Helper()
	if values == nil {
		values = url.Values{}
	}
	values.Set(middleware.CSRFFieldName, e.csrfToken(t))
	return e.postRaw(t, path, values)
}

// postRaw はフォームをそのまま送信する。
func (e *testEnv) postRaw(t *testing.T, path string, values url.Values) testResponse {
	t.Helper()
	return e.postWithHeader(t, path, values, nil)
}

// postWithHeader は追加ヘッダー付きでフォームを送信する。
func (e *testEnv) postWithHeader(t *testing.T, path string, values url.Values, header http.Header) testResponse {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(values.Encode()))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req)
}

// request は任意のメソッドでリクエストを送信する。
func (e *testEnv) request(t *testing.T, method, path string) testResponse {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return e.do(t, req)
}

// csrfToken はCookie jarに保存されたCSRFトークンを返す。未取得ならログイン画面で取得する。
func (e *testEnv) csrfToken(t *testing.T) string {
	t.Helper()
	if token := e.cookie(t, "csrf_token"); token != "" {
		return token
	}
	e.get(t, "/admin")
	token := e.cookie(t, "csrf_token")
	if token == "" {
		t.Fatal("CSRF cookie was not issued")
	}
	return token
}

func (e *testEnv) cookie(t *testing.T, name string) string {
	t.Helper()
	u, err := url.Parse(e.server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp := e.postForm(t, "/admin/login", url.Values{"password": {testPassword}})
	if resp.status != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303; body: %s", resp.status, resp.body)
	}
}

func assertRedirect(t *testing.T, resp testResponse, status int, location string) {
	t.Helper()
	if resp.status != status {
		t.Errorf("status = %d, want %d", resp.status, status)
	}
	if got := resp.header.Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}
