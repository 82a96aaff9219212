// Package model はドメインモデルを定義する。
package model

import "time"

// PostTitleMaxLength はpostsテーブルのtitleカラム（VARCHAR(255)）の最大文字数。
const PostTitleMaxLength = 255

// Post はブログ記事を表す。
// IDとCreatedAtはDB側で採番・設定され、作成後は変更されない。
type Post struct {
	ID        int64
	Title     string
	Content   string
	CreatedAt time.Time
}
