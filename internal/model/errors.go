package model

import (
	"errors"
	"fmt"
)

// ErrorKind はアプリケーションエラーの分類。
type ErrorKind string

const (
	// KindValidation は必須入力の欠落など、入力値の不備。
	KindValidation ErrorKind = "validation"
	// KindNotFound は指定IDやスラッグのリソースが存在しないこと。
	KindNotFound ErrorKind = "not_found"
	// KindStorage はデータベース障害。詳細はログのみに記録する。
	KindStorage ErrorKind = "storage"
)

// 定義済みエラーコード
const (
	ErrCodeFieldsRequired = "FIELDS_REQUIRED"
	ErrCodeTitleTooLong   = "TITLE_TOO_LONG"
	ErrCodePostNotFound   = "POST_NOT_FOUND"
	ErrCodePlanNotFound   = "PLAN_NOT_FOUND"
	ErrCodeStorage        = "STORAGE_ERROR"
)

// AppError はサービス層からハンドラーへ返す統一エラー。
// Messageはクライアントにそのまま返してよい文言のみを持ち、
// 内部原因はErrに保持してログにのみ出力する。
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は内部原因を返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewFieldsRequiredError はタイトルまたは本文が空の場合のエラーを生成する。
func NewFieldsRequiredError() *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeFieldsRequired,
		Message: "Title and content are required.",
	}
}

// NewTitleTooLongError はタイトルが上限文字数を超えた場合のエラーを生成する。
func NewTitleTooLongError() *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeTitleTooLong,
		Message: fmt.Sprintf("Title must be at most %d characters.", PostTitleMaxLength),
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(id int64) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    ErrCodePostNotFound,
		Message: "Post no encontrado",
		Err:     fmt.Errorf("post %d does not exist", id),
	}
}

// NewPlanNotFoundError はプラン未検出エラーを生成する。
func NewPlanNotFoundError(slug string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    ErrCodePlanNotFound,
		Message: "Plan no encontrado",
		Err:     fmt.Errorf("plan %q does not exist", slug),
	}
}

// NewStorageError はDB障害をラップする。opはログ用の操作名。
func NewStorageError(op string, err error) *AppError {
	return &AppError{
		Kind:    KindStorage,
		Code:    ErrCodeStorage,
		Message: "Error " + op,
		Err:     err,
	}
}

// IsKind はerrがkindのAppErrorを含むかどうかを返す。
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
