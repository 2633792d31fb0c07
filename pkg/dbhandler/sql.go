package dbhandler

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" ドライバを登録する
	"github.com/nao1215/feliz/pkg/migration"
	"github.com/nao1215/feliz/pkg/store"
	_ "modernc.org/sqlite" // "sqlite" ドライバを登録する
)

// SQLHandler はdatabase/sqlを使うリレーショナルデータベースのハンドラ。
type SQLHandler struct {
	// db はコネクションプール。
	db *sql.DB
	// bind はプレースホルダ形式。
	bind migration.Bindvar
}

// NewSQLHandler は既存の *sql.DB から SQLHandler を生成する。
func NewSQLHandler(db *sql.DB, bind migration.Bindvar) *SQLHandler {
	if bind == nil {
		bind = migration.Question
	}
	return &SQLHandler{db: db, bind: bind}
}

// OpenPostgres はpgxドライバでPostgreSQLへの接続を開く。
// 実際の接続は最初のクエリ実行時に行われる。
func OpenPostgres(cfg ConnConfig) (*SQLHandler, error) {
	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("(%s) PostgreSQLへの接続に失敗: %w", cfg.Alias, err)
	}
	return NewSQLHandler(db, migration.Dollar), nil
}

// OpenSQLite はSQLiteのデータベースファイルを開く。
func OpenSQLite(path string) (*SQLHandler, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("SQLiteデータベースのオープンに失敗: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewSQLHandler(db, migration.Question), nil
}

// Kind は store.Postgres を返す。SQLiteもリレーショナル種別として扱う。
func (h *SQLHandler) Kind() string {
	return store.Postgres
}

// DB は内部の *sql.DB を返す。
func (h *SQLHandler) DB() *sql.DB {
	return h.db
}

// QueryRecords はtargetテーブルから条件に一致する行をマップのスライスで返す。
func (h *SQLHandler) QueryRecords(ctx context.Context, target string, conds []Condition, limit int) ([]map[string]any, error) {
	if err := ValidIdentifier(target); err != nil {
		return nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(target)
	for i, c := range conds {
		if err := ValidIdentifier(c.Field); err != nil {
			return nil, err
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(c.Field)
		sb.WriteString(" = ")
		sb.WriteString(h.bind(i + 1))
		args = append(args, c.Value)
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}

	rows, err := h.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%sの検索に失敗: %w", target, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("カラム情報の取得に失敗: %w", err)
	}

	records := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("行の読み込みに失敗: %w", err)
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("行の読み込みに失敗: %w", err)
	}
	return records, nil
}

// Placeholder はn番目（1始まり）のプレースホルダを返す。
func (h *SQLHandler) Placeholder(n int) string {
	return h.bind(n)
}

// Exec は1つの文を実行する。
func (h *SQLHandler) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.db.ExecContext(ctx, query, args...)
}

// ExecBatch は文を1つのトランザクションで順に実行する。
func (h *SQLHandler) ExecBatch(ctx context.Context, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("SQL実行に失敗 (%s): %w", stmt, err)
		}
	}
	return tx.Commit()
}

// Migrate はfsysのdirにあるマイグレーションを適用する。
func (h *SQLHandler) Migrate(ctx context.Context, fsys fs.FS, dir string) error {
	return migration.Run(ctx, h.db, fsys, dir, h.bind)
}

// Close は接続を閉じる。
func (h *SQLHandler) Close() error {
	return h.db.Close()
}
