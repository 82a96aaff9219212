package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/korvad/korvadweb/internal/auth"
	"github.com/korvad/korvadweb/internal/middleware"
	"github.com/korvad/korvadweb/internal/model"
	"github.com/korvad/korvadweb/internal/view"
)

const (
	adminLoginPath = "/admin"
	adminPanelPath = "/admin/panel"

	// loginErrorMessage はパスワード不一致時にログイン画面へ表示する文言。
	loginErrorMessage = "Contraseña incorrecta"
	// adminPostNotFound は管理画面で記事が見つからない場合の本文。
	adminPostNotFound = "Post not found"
)

// AuthServiceInterface は管理者ハンドラーが必要とする認証サービスインターフェース。
type AuthServiceInterface interface {
	// Login はパスワードを検証し、認証済みセッションを発行する。
	// 不一致の場合はauth.ErrInvalidPasswordを返す。
	Login(ctx context.Context, currentSessionID, password string) (*model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
}

// SessionBinder はセッションCookieの書き換えを行う。middleware.SessionGuardが実装する。
type SessionBinder interface {
	Bind(w http.ResponseWriter, r *http.Request, sessionID string) error
	Clear(w http.ResponseWriter, r *http.Request) error
}

// AdminHandler は管理画面のHTTPハンドラー。
type AdminHandler struct {
	auth     AuthServiceInterface
	binder   SessionBinder
	posts    PostServiceInterface
	renderer Renderer
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(authService AuthServiceInterface, binder SessionBinder, posts PostServiceInterface, renderer Renderer) *AdminHandler {
	return &AdminHandler{
		auth:     authService,
		binder:   binder,
		posts:    posts,
		renderer: renderer,
	}
}

// LoginForm はログインフォームを描画する。
// GET /admin
func (h *AdminHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.renderer, http.StatusOK, view.PageAdminLogin, baseData(r))
}

// Login は管理者パスワードを検証する。
// 一致すればセッションを認証済みに切り替えてパネルへ、不一致ならエラー付きでフォームを再描画する。
// POST /admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	session, err := h.auth.Login(r.Context(), principal.SessionID, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidPassword) {
		data := baseData(r)
		data.Error = loginErrorMessage
		render(w, r, h.renderer, http.StatusOK, view.PageAdminLogin, data)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.binder.Bind(w, r, session.ID); err != nil {
		slog.Error("failed to bind session cookie", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.Redirect(w, r, adminPanelPath, http.StatusSeeOther)
}

// Logout はセッションを破棄してトップページへリダイレクトする。
// GET /admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	if err := h.auth.Logout(r.Context(), principal.SessionID); err != nil {
		// 行は期限切れ後にクリーンアップで削除される
		slog.Error("failed to delete session", slog.String("error", err.Error()))
	}
	if err := h.binder.Clear(w, r); err != nil {
		slog.Error("failed to clear session cookie", slog.String("error", err.Error()))
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Panel は記事一覧と新規作成フォームを描画する。
// GET /admin/panel
func (h *AdminHandler) Panel(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPosts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := baseData(r)
	data.Posts = posts
	render(w, r, h.renderer, http.StatusOK, view.PageAdminPanel, data)
}

// CreatePost は記事を作成してパネルへリダイレクトする。
// タイトルまたは本文が空の場合は400をプレーンテキストで返す。
// POST /admin/new-post
func (h *AdminHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.CreatePost(r.Context(), r.PostFormValue("title"), r.PostFormValue("content"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("post created", slog.Int64("post_id", post.ID))
	http.Redirect(w, r, adminPanelPath, http.StatusSeeOther)
}

// EditForm は記事の編集フォームを描画する。
// GET /admin/edit/{id}
func (h *AdminHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r, adminPostNotFound)
	if !ok {
		return
	}

	post, err := h.posts.GetPost(r.Context(), id)
	if err != nil {
		writeErrorWith(w, r, err, errorTexts{notFound: adminPostNotFound, storage: "Error fetching post for editing"})
		return
	}

	data := baseData(r)
	data.Post = post
	render(w, r, h.renderer, http.StatusOK, view.PageAdminEdit, data)
}

// UpdatePost は記事を更新してパネルへリダイレクトする。
// 存在しないIDの場合は404を返し、新しい記事は作成しない。
// POST /admin/edit/{id}
func (h *AdminHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r, adminPostNotFound)
	if !ok {
		return
	}

	if err := h.posts.UpdatePost(r.Context(), id, r.PostFormValue("title"), r.PostFormValue("content")); err != nil {
		writeErrorWith(w, r, err, errorTexts{notFound: adminPostNotFound})
		return
	}

	slog.Info("post updated", slog.Int64("post_id", id))
	http.Redirect(w, r, adminPanelPath, http.StatusSeeOther)
}

// DeletePost は記事を削除してパネルへリダイレクトする。存在しないIDでも成功とする。
// POST /admin/delete/{id}
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r, adminPostNotFound)
	if !ok {
		return
	}

	if err := h.posts.DeletePost(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("post deleted", slog.Int64("post_id", id))
	http.Redirect(w, r, adminPanelPath, http.StatusSeeOther)
}
