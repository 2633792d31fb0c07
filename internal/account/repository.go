package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nao1215/feliz/pkg/dbhandler"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
)

// database は利用者の読み書きに必要な接続ハンドラの操作。
type database interface {
	dbhandler.Handler
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Placeholder(n int) string
}

// Repository は利用者テーブルへのアクセスを提供する。
type Repository struct {
	db database
}

// NewRepository は設定ストアに登録された接続ハンドラから Repository を生成する。
func NewRepository(s *store.Store) (*Repository, error) {
	v, ok := s.DB(store.Postgres, Alias)
	if !ok {
		return nil, response.Developmentf("接続ハンドラ %s.%s が登録されていません", store.Postgres, Alias)
	}
	db, ok := v.(database)
	if !ok {
		return nil, response.Developmentf("%s.%s は利用者テーブルに対応していません: %T", store.Postgres, Alias, v)
	}
	return &Repository{db: db}, nil
}

// Find はuidの利用者を返す。パスワードハッシュを含む。
func (r *Repository) Find(ctx context.Context, uid string) (map[string]any, bool, error) {
	records, err := r.db.QueryRecords(ctx, usersTable, []dbhandler.Condition{{Field: "uid", Value: uid}}, 0)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

// List はすべての利用者をパスワードハッシュを除いて返す。
func (r *Repository) List(ctx context.Context) ([]map[string]any, error) {
	records, err := r.db.QueryRecords(ctx, usersTable, nil, 0)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		delete(rec, "password")
	}
	return records, nil
}

// Create は利用者を追加する。
func (r *Repository) Create(ctx context.Context, uid, hash, permission, name string) error {
	q := fmt.Sprintf("INSERT INTO %s (uid, password, permission, status, name) VALUES (%s, %s, %s, %s, %s)",
		usersTable, r.db.Placeholder(1), r.db.Placeholder(2), r.db.Placeholder(3), r.db.Placeholder(4), r.db.Placeholder(5))
	if _, err := r.db.Exec(ctx, q, uid, hash, permission, StatusActive, name); err != nil {
		return fmt.Errorf("利用者の追加に失敗: %w", err)
	}
	return nil
}

// UpdateStatus は利用者の状態を変更する。該当する利用者がいなければfalseを返す。
func (r *Repository) UpdateStatus(ctx context.Context, uid, status string) (bool, error) {
	q := fmt.Sprintf("UPDATE %s SET status = %s WHERE uid = %s",
		usersTable, r.db.Placeholder(1), r.db.Placeholder(2))
	res, err := r.db.Exec(ctx, q, status, uid)
	if err != nil {
		return false, fmt.Errorf("利用者の状態変更に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("変更件数の取得に失敗: %w", err)
	}
	return n > 0, nil
}

// UpdatePermission は利用者の権限を変更する。該当する利用者がいなければfalseを返す。
func (r *Repository) UpdatePermission(ctx context.Context, uid, permission string) (bool, error) {
	q := fmt.Sprintf("UPDATE %s SET permission = %s WHERE uid = %s",
		usersTable, r.db.Placeholder(1), r.db.Placeholder(2))
	res, err := r.db.Exec(ctx, q, permission, uid)
	if err != nil {
		return false, fmt.Errorf("利用者の権限変更に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("変更件数の取得に失敗: %w", err)
	}
	return n > 0, nil
}

// RecordLogin はログイン履歴を追加する。
func (r *Repository) RecordLogin(ctx context.Context, uid string, at time.Time) error {
	q := fmt.Sprintf("INSERT INTO %s (uid, logged_in_at) VALUES (%s, %s)",
		loginHistoryTable, r.db.Placeholder(1), r.db.Placeholder(2))
	if _, err := r.db.Exec(ctx, q, uid, at.UTC()); err != nil {
		return fmt.Errorf("ログイン履歴の追加に失敗: %w", err)
	}
	return nil
}

// LoginHistory はuidのログイン履歴を返す。
func (r *Repository) LoginHistory(ctx context.Context, uid string) ([]map[string]any, error) {
	return r.db.QueryRecords(ctx, loginHistoryTable, []dbhandler.Condition{{Field: "uid", Value: uid}}, 0)
}
