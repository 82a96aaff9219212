package auth

// Principal はリクエスト単位で解決された認証状態。
// セッションミドルウェアが1リクエストにつき1回生成し、コンテキスト経由でハンドラーへ渡す。
type Principal struct {
	SessionID     string
	Authenticated bool
}

// Anonymous は未認証のPrincipalを返す。
func Anonymous(sessionID string) Principal {
	return Principal{SessionID: sessionID}
}
