package model

import "time"

// Session はサーバーサイドで保持するブラウザセッションを表す。
// クライアントには署名付きCookieでIDのみを渡す。
type Session struct {
	ID            string
	Authenticated bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Expired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
