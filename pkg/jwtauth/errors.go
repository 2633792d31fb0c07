package jwtauth

import (
	"fmt"

	"github.com/nao1215/feliz/pkg/response"
)

// FailureKind はトークン検証失敗の種類。
type FailureKind int

const (
	// Unauthorized はトークンが提示されていないことを表す。
	Unauthorized FailureKind = iota + 1
	// InvalidToken は署名や形式が不正なことを表す。
	InvalidToken
	// RevokedToken は失効済みのトークンであることを表す。
	RevokedToken
	// ExpiredToken は有効期限切れを表す。
	ExpiredToken
)

func (k FailureKind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case InvalidToken:
		return "invalid_token"
	case RevokedToken:
		return "revoked_token"
	case ExpiredToken:
		return "expired_token"
	default:
		return "unknown"
	}
}

// Messages は失敗種別ごとにクライアントへ返すメッセージ。
type Messages struct {
	// Unauthorized はトークン未提示時のメッセージ。
	Unauthorized string `mapstructure:"UNAUTHORIZED"`
	// Invalid は不正なトークンのメッセージ。
	Invalid string `mapstructure:"INVALID_TOKEN"`
	// Revoked は失効済みトークンのメッセージ。
	Revoked string `mapstructure:"REVOKED_TOKEN"`
	// Expired は期限切れトークンのメッセージ。
	Expired string `mapstructure:"EXPIRED_TOKEN"`
}

// DefaultMessages は既定のメッセージを返す。
func DefaultMessages() Messages {
	return Messages{
		Unauthorized: "Missing JWT token",
		Invalid:      "Invalid JWT token",
		Revoked:      "Revoked JWT token",
		Expired:      "Expired JWT token",
	}
}

// withDefaults は空のメッセージを既定値で埋める。
func (m Messages) withDefaults() Messages {
	def := DefaultMessages()
	if m.Unauthorized == "" {
		m.Unauthorized = def.Unauthorized
	}
	if m.Invalid == "" {
		m.Invalid = def.Invalid
	}
	if m.Revoked == "" {
		m.Revoked = def.Revoked
	}
	if m.Expired == "" {
		m.Expired = def.Expired
	}
	return m
}

func (m Messages) forKind(k FailureKind) string {
	switch k {
	case Unauthorized:
		return m.Unauthorized
	case RevokedToken:
		return m.Revoked
	case ExpiredToken:
		return m.Expired
	default:
		return m.Invalid
	}
}

// TokenError はトークン検証の失敗を表す。
type TokenError struct {
	// Kind は失敗の種類。
	Kind FailureKind
	// Message はクライアントに返すメッセージ。
	Message string
	// Err は原因となったエラー。
	Err error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// Envelope は失敗エンベロープを返す。
func (e *TokenError) Envelope() response.Envelope {
	return response.False(e.Message, nil)
}
