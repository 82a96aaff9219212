// Package auth は管理者パスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/korvad/korvadweb/internal/model"
	"github.com/korvad/korvadweb/internal/repository"
)

// ErrInvalidPassword はパスワードが一致しない場合に返される。
var ErrInvalidPassword = errors.New("invalid password")

// Recorder はログイン試行の結果を記録するインターフェース。
type Recorder interface {
	RecordLogin(ok bool)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	credential  *Credential
	sessionRepo repository.SessionRepository
	recorder    Recorder
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	credential *Credential,
	sessionRepo repository.SessionRepository,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		credential:  credential,
		sessionRepo: sessionRepo,
		recorder:    recorder,
		config:      config,
		now:         time.Now,
	}
}

// StartSession は未認証のセッションを発行する。
func (s *Service) StartSession(ctx context.Context) (*model.Session, error) {
	return s.createSession(ctx, false)
}

// Resolve はセッションIDから有効なセッションを取得する。
// 存在しないか期限切れの場合はnilを返す。
func (s *Service) Resolve(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, nil
	}
	return session, nil
}

// Login はパスワードを検証し、認証済みセッションを発行する。
// セッション固定化を防ぐため、成功時は新しいIDのセッションを作成して旧セッションを削除する。
// パスワード不一致の場合はErrInvalidPasswordを返し、セッションは変更しない。
func (s *Service) Login(ctx context.Context, currentSessionID, password string) (*model.Session, error) {
	if !s.credential.Verify(password) {
		s.recorder.RecordLogin(false)
		slog.Warn("admin login failed")
		return nil, ErrInvalidPassword
	}

	session, err := s.createSession(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if currentSessionID != "" {
		if err := s.sessionRepo.DeleteByID(ctx, currentSessionID); err != nil {
			// 旧セッションは期限切れで自然に消えるため、ログインは継続する
			slog.Error("failed to delete previous session", slog.String("error", err.Error()))
		}
	}

	s.recorder.RecordLogin(true)
	slog.Info("admin logged in")
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("admin logged out")
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, authenticated bool) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:            sessionID,
		Authenticated: authenticated,
		ExpiresAt:     now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:     now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(bool) {}
