package dbhandler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidIdentifier はテーブル名やカラム名として使えない文字列を表す。
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Condition は等価条件。
type Condition struct {
	// Field は比較するカラム（フィールド）名。
	Field string
	// Value は比較する値。
	Value any
}

// Handler はデータベース接続ハンドラ。
// 1つのインスタンスが全リクエストで共有されるため、実装は並行安全でなければならない。
type Handler interface {
	// Kind はデータベース種別（store.Mongo / store.Postgres）を返す。
	Kind() string
	// QueryRecords はtargetから条件に一致するレコードを返す。limitが0以下なら無制限。
	QueryRecords(ctx context.Context, target string, conds []Condition, limit int) ([]map[string]any, error)
	// Close は接続を閉じる。
	Close() error
}

// Relational はDDLの一括実行ができるハンドラ。
type Relational interface {
	Handler
	// ExecBatch は文を1つのトランザクションで順に実行する。
	ExecBatch(ctx context.Context, stmts []string) error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier は識別子を検証する。"schema.table" 形式も許可する。
func ValidIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
