// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/korvad/korvadweb/internal/model"
)

// PostRepository はブログ記事の永続化インターフェース。
// postsテーブルへのSQLはこの実装からのみ発行する。
type PostRepository interface {
	// List は全記事をcreated_at降順（同時刻はid降順）で返す。0件の場合は空スライスを返す。
	List(ctx context.Context) ([]*model.Post, error)

	// ListRecent は新しい順に最大limit件の記事を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.Post, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// Create は記事を作成し、DBが採番したIDと作成日時を設定した記事を返す。
	Create(ctx context.Context, title, content string) (*model.Post, error)

	// Update は記事のタイトルと本文を上書きする。
	// 該当行が存在しない場合は行を作成せずfalseを返す。
	Update(ctx context.Context, id int64, title, content string) (bool, error)

	// Delete は指定IDの記事を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, id int64) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
