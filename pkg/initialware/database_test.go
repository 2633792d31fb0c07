package initialware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/nao1215/feliz/pkg/dbhandler"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validINI = `
[main]
db_type = postgres
host = localhost
port = 5432
username = owner
password = secret
database = main.db

[docs]
db_type = mongo
host = localhost
port = 27017
database = docs
`

const invalidINI = `
[main]
db_type = postgres
host = localhost
port = 5432
database = main

[cache]
db_type = redis
host = localhost
port = 6379
database = 0

[search]
db_type = elastic
host = localhost
port = 9200
database = idx
`

// TestLoadConnectionConfigs はINIファイルの振り分けを検証する。
func TestLoadConnectionConfigs(t *testing.T) {
	t.Parallel()

	t.Run("種別ごとに接続設定を振り分けること", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "db.ini", validINI)
		env := LoadConnectionConfigs(path)
		require.True(t, env.Indicator, env.Message)

		configs, ok := env.Content.(ConnConfigs)
		require.True(t, ok)
		assert.Equal(t, "owner", configs[store.Postgres]["main"].Username)
		assert.Equal(t, 5432, configs[store.Postgres]["main"].Port)
		assert.Equal(t, "docs", configs[store.Mongo]["docs"].Database)
	})

	t.Run("不正な種別のセクションをすべて報告すること", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "db.ini", invalidINI)
		env := LoadConnectionConfigs(path)
		assert.False(t, env.Indicator)
		assert.Contains(t, env.Message, "(cache) redis is not a valid db_type.")
		assert.Contains(t, env.Message, "(search) elastic is not a valid db_type.")
		assert.NotContains(t, env.Message, "(main)")
	})

	t.Run("結果はパスごとに再利用すること", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), "db.ini", validINI)
		first := LoadConnectionConfigs(path)
		require.NoError(t, os.Remove(path))
		second := LoadConnectionConfigs(path)
		assert.Equal(t, first, second)
	})

	t.Run("ファイルがない場合は失敗エンベロープを返すこと", func(t *testing.T) {
		t.Parallel()

		env := LoadConnectionConfigs(filepath.Join(t.TempDir(), "missing.ini"))
		assert.False(t, env.Indicator)
	})
}

func dbConfigs(enabled bool) map[string]any {
	return map[string]any{"DB": map[string]any{"DB_ENABLE": enabled, "INI_FILE": "private/db.ini"}}
}

// TestPostgresSetup はリレーショナルデータベースの初期化を検証する。
func TestPostgresSetup(t *testing.T) {
	t.Parallel()

	openSQLite := func(dir string) func(cfg dbhandler.ConnConfig) (dbhandler.Relational, error) {
		return func(cfg dbhandler.ConnConfig) (dbhandler.Relational, error) {
			return dbhandler.OpenSQLite(filepath.Join(dir, cfg.Database))
		}
	}

	t.Run("接続ハンドラを登録し、マイグレーションとモデルのDDLを実行すること", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, dbConfigs(true))
		t.Cleanup(func() { _ = a.Close() })
		writeFile(t, a.ConfigDir, "private/db.ini", validINI)

		stage := PostgresSetup{
			Open: openSQLite(t.TempDir()),
			Models: map[string][]dbhandler.SchemaModel{
				"main": {dbhandler.Table{Name: "users", Columns: []string{"uid TEXT PRIMARY KEY", "permission TEXT"}}},
			},
			Migrations: fstest.MapFS{
				"migrations/000001_create_logs.up.sql": {Data: []byte("CREATE TABLE logs (id INTEGER PRIMARY KEY);")},
			},
			MigrationDir: "migrations",
		}
		require.NoError(t, run(t, a, stage))

		v, ok := a.Store.DB(store.Postgres, "main")
		require.True(t, ok)
		h, ok := v.(*dbhandler.SQLHandler)
		require.True(t, ok)

		ctx := context.Background()
		_, err := h.Exec(ctx, "INSERT INTO users (uid, permission) VALUES (?, ?)", "u1", "admin")
		require.NoError(t, err)
		records, err := h.QueryRecords(ctx, "users", nil, 0)
		require.NoError(t, err)
		assert.Len(t, records, 1)

		applied, err := h.QueryRecords(ctx, "schema_migrations", nil, 0)
		require.NoError(t, err)
		assert.Len(t, applied, 1)

		_, ok = a.Store.DB(store.Mongo, "docs")
		assert.False(t, ok)
	})

	t.Run("DB機能が無効なら何もしないこと", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, dbConfigs(false))
		writeFile(t, a.ConfigDir, "private/db.ini", validINI)
		require.NoError(t, run(t, a, PostgresSetup{Open: openSQLite(t.TempDir())}))
		assert.Empty(t, a.Store.Handlers())
	})

	t.Run("INIファイルが不正なら警告のみで続行すること", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, dbConfigs(true))
		writeFile(t, a.ConfigDir, "private/db.ini", invalidINI)
		require.NoError(t, run(t, a, PostgresSetup{Open: openSQLite(t.TempDir())}))
		assert.Empty(t, a.Store.Handlers())
	})

	t.Run("接続ハンドラの生成に失敗したら起動を中断すること", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, dbConfigs(true))
		writeFile(t, a.ConfigDir, "private/db.ini", validINI)
		boom := errors.New("connection refused")
		err := run(t, a, PostgresSetup{Open: func(dbhandler.ConnConfig) (dbhandler.Relational, error) {
			return nil, boom
		}})
		assert.ErrorIs(t, err, boom)
	})
}

// fakeMongo は問い合わせを記録する接続ハンドラ。
type fakeMongo struct {
	cfg     dbhandler.ConnConfig
	schemas []string
	queries []string
	limits  []int
	fail    bool
}

func (f *fakeMongo) Kind() string { return store.Mongo }

func (f *fakeMongo) QueryRecords(_ context.Context, target string, _ []dbhandler.Condition, limit int) ([]map[string]any, error) {
	f.queries = append(f.queries, target)
	f.limits = append(f.limits, limit)
	if f.fail {
		return nil, errors.New("server selection timeout")
	}
	return nil, nil
}

func (f *fakeMongo) Close() error { return nil }

// TestMongoSetup はドキュメントストアの初期化を検証する。
func TestMongoSetup(t *testing.T) {
	t.Parallel()

	for _, fail := range []bool{false, true} {
		t.Run("宣言したコレクションに1件だけ問い合わせて登録すること", func(t *testing.T) {
			t.Parallel()

			a := newApp(t, dbConfigs(true))
			writeFile(t, a.ConfigDir, "private/db.ini", validINI)

			var created *fakeMongo
			stage := MongoSetup{
				Open: func(_ context.Context, cfg dbhandler.ConnConfig, schemas []string) (dbhandler.Handler, error) {
					created = &fakeMongo{cfg: cfg, schemas: schemas, fail: fail}
					return created, nil
				},
				Models: map[string][]string{"docs": {"articles", "tags"}},
			}
			require.NoError(t, run(t, a, stage))

			require.NotNil(t, created)
			assert.Equal(t, "docs", created.cfg.Alias)
			assert.Equal(t, []string{"articles", "tags"}, created.queries)
			assert.Equal(t, []int{1, 1}, created.limits)

			v, ok := a.Store.DB(store.Mongo, "docs")
			require.True(t, ok)
			assert.Same(t, created, v)
		})
	}
}
