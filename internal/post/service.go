// Package post はブログ記事の管理機能を提供する。
// 入力検証とエラー分類（Validation / NotFound / Storage）はこの層で行い、
// SQLはrepository.PostRepositoryに委譲する。
package post

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/korvad/korvadweb/internal/model"
	"github.com/korvad/korvadweb/internal/repository"
)

// 書き込み操作の種別。メトリクスのラベルに使用する。
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Recorder は記事の書き込み結果を記録するインターフェース。
type Recorder interface {
	RecordPostWrite(op string, ok bool)
}

// Service は記事のCRUDサービス。
type Service struct {
	repo     repository.PostRepository
	recorder Recorder
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(repo repository.PostRepository, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		repo:     repo,
		recorder: recorder,
	}
}

// ListPosts は全記事を新しい順に返す。
func (s *Service) ListPosts(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, model.NewStorageError("fetching posts", err)
	}
	return posts, nil
}

// RecentPosts は新しい順に最大limit件の記事を返す。
func (s *Service) RecentPosts(ctx context.Context, limit int) ([]*model.Post, error) {
	posts, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, model.NewStorageError("fetching posts", err)
	}
	return posts, nil
}

// GetPost は指定IDの記事を返す。存在しない場合はNotFoundエラー。
func (s *Service) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStorageError("fetching post", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return post, nil
}

// CreatePost は記事を作成する。
func (s *Service) CreatePost(ctx context.Context, title, content string) (*model.Post, error) {
	if err := Validate(title, content); err != nil {
		return nil, err
	}

	post, err := s.repo.Create(ctx, title, content)
	s.recorder.RecordPostWrite(OpCreate, err == nil)
	if err != nil {
		return nil, model.NewStorageError("creating post", err)
	}
	return post, nil
}

// UpdatePost は記事のタイトルと本文を上書きする。
// 対象が存在しない場合は行を作成せず、NotFoundエラーを返す。
func (s *Service) UpdatePost(ctx context.Context, id int64, title, content string) error {
	if err := Validate(title, content); err != nil {
		return err
	}

	found, err := s.repo.Update(ctx, id, title, content)
	s.recorder.RecordPostWrite(OpUpdate, err == nil)
	if err != nil {
		return model.NewStorageError("updating post", err)
	}
	if !found {
		return model.NewPostNotFoundError(id)
	}
	return nil
}

// DeletePost は記事を削除する。存在しない場合も成功とする。
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	s.recorder.RecordPostWrite(OpDelete, err == nil)
	if err != nil {
		return model.NewStorageError("deleting post", err)
	}
	return nil
}

// Validate はタイトルと本文を検証する。
// 空白のみの値は未入力として扱う。
func Validate(title, content string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return model.NewFieldsRequiredError()
	}
	if utf8.RuneCountInString(title) > model.PostTitleMaxLength {
		return model.NewTitleTooLongError()
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) RecordPostWrite(string, bool) {}
