package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/korvad/korvadweb/internal/model"
)

const selectPostColumns = `SELECT id, title, content, created_at FROM posts`

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
// すべてのクエリはプレースホルダ（$n）でパラメータを渡し、SQL文字列を組み立てない。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// List は全記事を新しい順に返す。
func (r *PostgresPostRepo) List(ctx context.Context) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPostColumns+` ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return scanPosts(rows)
}

// ListRecent は新しい順に最大limit件の記事を返す。
func (r *PostgresPostRepo) ListRecent(ctx context.Context, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPostColumns+` ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent posts: %w", err)
	}
	return scanPosts(rows)
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		selectPostColumns+` WHERE id = $1`,
		id,
	).Scan(&post.ID, &post.Title, &post.Content, &post.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	return post, nil
}

// Create は記事を作成する。IDと作成日時はDB側で設定される。
func (r *PostgresPostRepo) Create(ctx context.Context, title, content string) (*model.Post, error) {
	post := &model.Post{Title: title, Content: content}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (title, content) VALUES ($1, $2)
		 RETURNING id, created_at`,
		title, content,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// Update は記事のタイトルと本文を上書きする。created_atは変更しない。
func (r *PostgresPostRepo) Update(ctx context.Context, id int64, title, content string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title = $1, content = $2 WHERE id = $3`,
		title, content, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete は指定IDの記事を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// scanPosts は記事の行セットを読み取り、クローズする。
func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	defer rows.Close()

	posts := make([]*model.Post, 0)
	for rows.Next() {
		post := &model.Post{}
		if err := rows.Scan(&post.ID, &post.Title, &post.Content, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
