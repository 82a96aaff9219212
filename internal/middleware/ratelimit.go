package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	LoginRate       rate.Limit    // ログイン試行のレート（req/sec）。5/60
	LoginBurst      int           // ログイン試行のバーストサイズ
	AdminRate       rate.Limit    // 管理画面のレート（req/sec）。120/60 = 2 req/sec
	AdminBurst      int           // 管理画面のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// PerMinuteRateLimiterConfig は1分あたりの回数から設定を生成する。
// バーストサイズは1分あたりの回数と同じにする。
func PerMinuteRateLimiterConfig(loginPerMin, adminPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		LoginRate:       rate.Limit(float64(loginPerMin) / 60.0),
		LoginBurst:      loginPerMin,
		AdminRate:       rate.Limit(float64(adminPerMin) / 60.0),
		AdminBurst:      adminPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はキー（IPアドレスやセッションID）ごとのリミッター集合。
type limiterSet struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*keyedLimiter),
	}
}

// allow はkeyのリミッターからトークンを1つ消費できるかを返す。
func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	kl, exists := s.limiters[key]
	if !exists {
		kl = &keyedLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = kl
	}
	kl.lastAccess = now
	s.mu.Unlock()

	return kl.limiter.AllowN(now, 1)
}

// evict は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter はログイン試行と管理画面操作のレート制限を管理する。
// ログインはクライアントIP単位、管理画面はセッション単位で制限する。
type RateLimiter struct {
	config RateLimiterConfig
	login  *limiterSet
	admin  *limiterSet
	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		login:  newLimiterSet(config.LoginRate, config.LoginBurst),
		admin:  newLimiterSet(config.AdminRate, config.AdminBurst),
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// LoginMiddleware はクライアントIP単位でログイン試行を制限するミドルウェアを返す。
func (rl *RateLimiter) LoginMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.login.allow(ip, time.Now()) {
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "login"),
				)
				writeRateLimitResponse(w, rl.config.LoginRate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminMiddleware はセッション単位で管理画面の操作を制限するミドルウェアを返す。
// SessionGuardの後に配置する。セッションがない場合はクライアントIPで代替する。
func (rl *RateLimiter) AdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := PrincipalFromContext(r.Context()).SessionID
			if key == "" {
				key = "ip:" + clientIP(r)
			}
			if !rl.admin.allow(key, time.Now()) {
				slog.Warn("rate limit exceeded",
					slog.String("limit_type", "admin"),
				)
				writeRateLimitResponse(w, rl.config.AdminRate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginLimiterCount は現在管理されているログインリミッターのエントリ数を返す。
func (rl *RateLimiter) LoginLimiterCount() int {
	return rl.login.len()
}

// AdminLimiterCount は現在管理されている管理画面リミッターのエントリ数を返す。
func (rl *RateLimiter) AdminLimiterCount() int {
	return rl.admin.len()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.login.evict(now, ttl)
	rl.admin.evict(now, ttl)
}

// clientIP はリクエスト元のIPアドレスを返す。
// 転送ヘッダーは参照しない。RemoteAddrを書き換えるのは、
// 信頼できるプロキシ配下でルーターが有効にしたRealIPミドルウェアだけ。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteText(w, http.StatusTooManyRequests, "Demasiadas solicitudes. Inténtalo de nuevo más tarde.")
}
