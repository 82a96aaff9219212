// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/korvad/korvadweb/internal/middleware"
	"github.com/korvad/korvadweb/internal/model"
	"github.com/korvad/korvadweb/internal/view"
)

// PostServiceInterface は記事を扱うハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	ListPosts(ctx context.Context) ([]*model.Post, error)
	RecentPosts(ctx context.Context, limit int) ([]*model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	CreatePost(ctx context.Context, title, content string) (*model.Post, error)
	UpdatePost(ctx context.Context, id int64, title, content string) error
	DeletePost(ctx context.Context, id int64) error
}

// Renderer はHTMLページを描画する。view.Rendererが実装する。
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, data view.Data) error
}

// baseData はリクエストから全ページ共通のテンプレート値を組み立てる。
func baseData(r *http.Request) view.Data {
	return view.Data{
		CSRFToken:     middleware.CSRFTokenFromContext(r.Context()),
		Authenticated: middleware.PrincipalFromContext(r.Context()).Authenticated,
	}
}

// render はページを描画する。描画に失敗した場合は500を返す。
func render(w http.ResponseWriter, r *http.Request, renderer Renderer, status int, page string, data view.Data) {
	if err := renderer.Render(w, status, page, data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

// errorTexts はルートごとにクライアントへ返す文言を上書きする。
// 空の項目はAppErrorのMessageをそのまま使う。
type errorTexts struct {
	notFound string
	storage  string
}

// message はerrの種類に対応する上書き文言を返す。なければfallback。
func (t errorTexts) message(err error, fallback string) string {
	switch {
	case t.notFound != "" && model.IsKind(err, model.KindNotFound):
		return t.notFound
	case t.storage != "" && model.IsKind(err, model.KindStorage):
		return t.storage
	}
	return fallback
}

// writeError はサービス層のエラーをHTTPレスポンスに変換する。
// ストレージ障害の原因はログにのみ出力し、クライアントには定型文を返す。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorWith(w, r, err, errorTexts{})
}

// writeErrorWith はwriteErrorと同じ変換を行い、本文だけtextsで差し替える。
func writeErrorWith(w http.ResponseWriter, r *http.Request, err error, texts errorTexts) {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unexpected error",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	msg := texts.message(err, appErr.Message)
	switch appErr.Kind {
	case model.KindValidation:
		middleware.WriteText(w, http.StatusBadRequest, msg)
	case model.KindNotFound:
		middleware.WriteText(w, http.StatusNotFound, msg)
	default:
		slog.Error("storage error",
			slog.String("code", appErr.Code),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.Any("error", appErr.Err),
		)
		middleware.WriteText(w, http.StatusInternalServerError, msg)
	}
}

// postIDParam はURLパラメータidを記事IDとして解釈する。
// 正の整数でない場合はnotFoundを本文とする404を書き込みfalseを返す。
func postIDParam(w http.ResponseWriter, r *http.Request, notFound string) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteText(w, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}
