package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credential は管理者パスワードのbcryptハッシュを保持する。
// 平文パスワードはメモリに保持しない。
type Credential struct {
	hash []byte
}

// NewCredentialFromHash は既存のbcryptハッシュからCredentialを生成する。
func NewCredentialFromHash(hash string) (*Credential, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return &Credential{hash: []byte(hash)}, nil
}

// NewCredentialFromPassword は平文パスワードをハッシュ化してCredentialを生成する。
func NewCredentialFromPassword(password string) (*Credential, error) {
	if password == "" {
		return nil, fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Credential{hash: hash}, nil
}

// Verify はpasswordがハッシュと一致するかを返す。
func (c *Credential) Verify(password string) bool {
	if c == nil || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
}
