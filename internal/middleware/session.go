// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/korvad/korvadweb/internal/auth"
	"github.com/korvad/korvadweb/internal/model"
)

const (
	// SessionCookieName はセッションIDを保持する署名付きCookieの名前。
	SessionCookieName = "korvad_session"

	sessionIDKey = "sid"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// SessionResolver はセッションの解決と発行に必要なインターフェース。
// auth.Serviceが実装する。
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (*model.Session, error)
	StartSession(ctx context.Context) (*model.Session, error)
}

// CookieOptions はセッションCookieの属性。
type CookieOptions struct {
	MaxAge int
	Secure bool
	Domain string
}

// NewCookieStore はsecretで署名するCookieストアを生成する。
func NewCookieStore(secret []byte, opts CookieOptions) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(opts.MaxAge)
	return store
}

// SessionGuard はリクエストごとにセッションを一度だけ解決し、
// 認証状態をPrincipalとしてコンテキストに注入する。
type SessionGuard struct {
	store    sessions.Store
	resolver SessionResolver
}

// NewSessionGuard はSessionGuardを生成する。
func NewSessionGuard(store sessions.Store, resolver SessionResolver) *SessionGuard {
	return &SessionGuard{store: store, resolver: resolver}
}

// Middleware はCookieからセッションを復元するミドルウェアを返す。
// セッションが存在しないか期限切れの場合は未認証セッションを発行する。
// ストレージ障害時はセッションなしの未認証として処理を続ける。
func (g *SessionGuard) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := g.resolve(w, r)
			annotateAuthenticated(r.Context(), principal.Authenticated)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func (g *SessionGuard) resolve(w http.ResponseWriter, r *http.Request) auth.Principal {
	cookieSession, err := g.store.Get(r, SessionCookieName)
	if err != nil {
		// 署名が一致しないCookieは破棄して新しいセッションを発行する
		slog.Debug("discarding undecodable session cookie", slog.String("error", err.Error()))
	}

	sessionID, _ := cookieSession.Values[sessionIDKey].(string)
	session, err := g.resolver.Resolve(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to resolve session", slog.String("error", err.Error()))
		return auth.Anonymous("")
	}

	if session == nil {
		session, err = g.resolver.StartSession(r.Context())
		if err != nil {
			slog.Error("failed to start session", slog.String("error", err.Error()))
			return auth.Anonymous("")
		}
		cookieSession.Values[sessionIDKey] = session.ID
		if err := cookieSession.Save(r, w); err != nil {
			slog.Error("failed to save session cookie", slog.String("error", err.Error()))
		}
	}

	return auth.Principal{SessionID: session.ID, Authenticated: session.Authenticated}
}

// Bind はCookieのセッションIDを差し替える。ログイン時のセッションローテーションで使用する。
func (g *SessionGuard) Bind(w http.ResponseWriter, r *http.Request, sessionID string) error {
	cookieSession, _ := g.store.Get(r, SessionCookieName)
	cookieSession.Values[sessionIDKey] = sessionID
	return cookieSession.Save(r, w)
}

// Clear はセッションCookieを失効させる。
func (g *SessionGuard) Clear(w http.ResponseWriter, r *http.Request) error {
	cookieSession, _ := g.store.Get(r, SessionCookieName)
	delete(cookieSession.Values, sessionIDKey)
	cookieSession.Options.MaxAge = -1
	return cookieSession.Save(r, w)
}

// RequireAdmin は未認証リクエストをloginPathへ302でリダイレクトするミドルウェアを返す。
// SessionGuardの後に配置する。
func RequireAdmin(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !PrincipalFromContext(r.Context()).Authenticated {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext はリクエストコンテキストからPrincipalを取得する。
// 未設定の場合はセッションなしの未認証Principalを返す。
func PrincipalFromContext(ctx context.Context) auth.Principal {
	p, ok := ctx.Value(principalContextKey).(auth.Principal)
	if !ok {
		return auth.Anonymous("")
	}
	return p
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
