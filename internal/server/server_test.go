package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/internal/account"
	"github.com/nao1215/feliz/pkg/api"
	"github.com/nao1215/feliz/pkg/app"
	"github.com/nao1215/feliz/pkg/dbhandler"
	"github.com/nao1215/feliz/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const serverConfig = `
SERVER:
  NAME: feliz-test
  HOST: 127.0.0.1
  PORT: 8000
JWT:
  JWT_ENABLE: true
  JWT_SECRET_KEY: test-secret
  EXPIRE_HOURS: 1
API:
  API_ENABLE: true
  API_FILE: private/server_api.yaml
DB:
  DB_ENABLE: true
  INI_FILE: private/db.ini
`

const serverAPI = `
users:
  create:
    POST:
      Authentication: false
      Mandatory: [uid, password]
      Optionals: [name]
      InputInspect: true
      InputType:
        uid: str
        password: str
  me:
    GET:
      Authentication: true
      Permission: [admin, user]
  list:
    GET:
      Authentication: true
      Permission: [admin]
  permission:
    PATCH:
      Authentication: true
      Permission: [admin]
      Mandatory: [uid, permission]
      InputInspect: true
      InputType:
        uid: str
        permission: str
  status:
    PATCH:
      Authentication: true
      Permission: [admin]
      Mandatory: [uid, status]
auth:
  login:
    POST:
      Authentication: false
      Mandatory: [uid, password]
  logout:
    POST:
      Authentication: true
      Permission: [admin, user]
`

const dbINI = `
[main]
db_type = postgres
host = localhost
port = 5432
database = users.db
`

const i18nJSON = `{"login_success": {"en": "Login success", "ja": "ログインしました"}}`

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// newServer は設定ディレクトリを作り、SQLiteで起動したサーバーを返す。
// 管理者 root (パスワード pw-root) を登録済みにする。
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "private/server_config.yaml", serverConfig)
	writeFile(t, dir, "private/server_api.yaml", serverAPI)
	writeFile(t, dir, "private/db.ini", dbINI)
	writeFile(t, dir, "public/i18n.json", i18nJSON)

	a := app.New(app.WithConfigDir(dir))
	t.Cleanup(func() { _ = a.Close() })

	svc := account.NewService(account.WithCost(bcrypt.MinCost))
	registry := api.NewRegistry()
	require.NoError(t, account.Register(registry, svc))

	err := Setup(context.Background(), a, Options{
		EnvPrefix: "-",
		Registry:  registry,
		OpenPostgres: func(cfg dbhandler.ConnConfig) (dbhandler.Relational, error) {
			return dbhandler.OpenSQLite(filepath.Join(dir, cfg.Database))
		},
	})
	require.NoError(t, err)
	assert.True(t, registry.Locked())
	require.NoError(t, svc.CreateUser(context.Background(), a.Store, "root", "pw-root", account.PermissionAdmin, ""))

	ts := httptest.NewServer(a.Engine)
	t.Cleanup(ts.Close)
	return ts
}

// TestAccountFlow は登録からログアウトまでの一連の操作を検証する。
func TestAccountFlow(t *testing.T) {
	t.Parallel()

	ts := newServer(t)
	ctx := context.Background()
	admin := httpclient.New(ts.URL)
	member := httpclient.New(ts.URL)

	t.Run("利用者を登録できること", func(t *testing.T) {
		env, err := admin.Post(ctx, "/api/users/create", map[string]any{"uid": "alice", "password": "pw-alice"})
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)

		env, err = member.Post(ctx, "/api/users/create", map[string]any{"uid": "bob", "password": "pw-bob"})
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)
		assert.Equal(t, map[string]any{"uid": "bob", "permission": "user"}, env.Content)
	})

	t.Run("匿名の登録では権限を指定できないこと", func(t *testing.T) {
		mallory := httpclient.New(ts.URL)
		env, err := mallory.Post(ctx, "/api/users/create", map[string]any{
			"uid": "mallory", "password": "pw-mallory", "permission": "admin",
		})
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)
		assert.Equal(t, map[string]any{"uid": "mallory", "permission": "user"}, env.Content)

		env, err = mallory.Login(ctx, "/api/auth/login",
			map[string]any{"uid": "mallory", "password": "pw-mallory"}, "access_token")
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)

		env, err = mallory.Get(ctx, "/api/users/list")
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "You don't have the permission to call this API.", env.Message)

		env, err = mallory.Do(ctx, http.MethodPatch, "/api/users/permission",
			map[string]any{"uid": "mallory", "permission": "admin"})
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "You don't have the permission to call this API.", env.Message)
	})

	t.Run("管理者は権限を付与できること", func(t *testing.T) {
		root := httpclient.New(ts.URL)
		env, err := root.Login(ctx, "/api/auth/login",
			map[string]any{"uid": "root", "password": "pw-root"}, "access_token")
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)

		env, err = root.Do(ctx, http.MethodPatch, "/api/users/permission",
			map[string]any{"uid": "alice", "permission": account.PermissionAdmin})
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)

		env, err = root.Do(ctx, http.MethodPatch, "/api/users/permission",
			map[string]any{"uid": "alice", "permission": "owner"})
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "Unknown permission: owner", env.Message)

		env, err = root.Do(ctx, http.MethodPatch, "/api/users/permission",
			map[string]any{"uid": "ghost", "permission": account.PermissionAdmin})
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "This account (ghost) is not in database.", env.Message)
	})

	t.Run("登録の入力不備を報告すること", func(t *testing.T) {
		env, err := admin.Post(ctx, "/api/users/create", map[string]any{"uid": "alice", "password": "x"})
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "This account (alice) already exists.", env.Message)

		env, err = admin.Post(ctx, "/api/users/create", map[string]any{"uid": "carol"})
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "No input: password", env.Message)

		env, err = admin.Post(ctx, "/api/users/create", map[string]any{"uid": 1, "password": "x"})
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "The input type of 'uid' should not be *int but *str", env.Message)
	})

	t.Run("パスワードが違う場合はログインできないこと", func(t *testing.T) {
		env, err := httpclient.New(ts.URL).Login(ctx, "/api/auth/login",
			map[string]any{"uid": "alice", "password": "wrong"}, "access_token")
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "Wrong uid or password.", env.Message)
	})

	t.Run("トークンなしでは認証が必要なAPIを呼べないこと", func(t *testing.T) {
		env, err := httpclient.New(ts.URL).Get(ctx, "/api/users/me")
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "Missing JWT token", env.Message)
	})

	t.Run("ログイン後は自分の情報を参照できること", func(t *testing.T) {
		env, err := admin.Login(ctx, "/api/auth/login",
			map[string]any{"uid": "alice", "password": "pw-alice"}, "access_token")
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)
		assert.Equal(t, "Login success", env.Message)
		content, ok := env.Content.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "1h0m0s", content["expires"])

		env, err = admin.Get(ctx, "/api/users/me")
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)
		me, ok := env.Content.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "alice", me["uid"])
		assert.Equal(t, "admin", me["permission"])
		assert.NotContains(t, me, "password")
	})

	t.Run("管理者でなければ一覧を参照できないこと", func(t *testing.T) {
		env, err := member.Login(ctx, "/api/auth/login",
			map[string]any{"uid": "bob", "password": "pw-bob"}, "access_token")
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)

		env, err = member.Get(ctx, "/api/users/list")
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "You don't have the permission to call this API.", env.Message)

		env, err = admin.Get(ctx, "/api/users/list")
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)
		users, ok := env.Content.([]any)
		require.True(t, ok)
		assert.Len(t, users, 4)
	})

	t.Run("停止した利用者は拒否されること", func(t *testing.T) {
		env, err := admin.Do(ctx, http.MethodPatch, "/api/users/status",
			map[string]any{"uid": "bob", "status": account.StatusBlocked})
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)

		env, err = member.Get(ctx, "/api/users/me")
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "This user is Blocked", env.Message)

		env, err = httpclient.New(ts.URL).Login(ctx, "/api/auth/login",
			map[string]any{"uid": "bob", "password": "pw-bob"}, "access_token")
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "This user is Blocked", env.Message)
	})

	t.Run("ログアウトしたトークンは使えないこと", func(t *testing.T) {
		env, err := admin.Post(ctx, "/api/auth/logout", map[string]any{})
		require.NoError(t, err)
		require.True(t, env.Indicator, env.Message)

		env, err = admin.Get(ctx, "/api/users/me")
		require.NoError(t, err)
		assert.False(t, env.Indicator)
		assert.Equal(t, "Revoked JWT token", env.Message)
	})
}

// TestLoginMessageLanguage はログインメッセージの翻訳を検証する。
func TestLoginMessageLanguage(t *testing.T) {
	t.Parallel()

	ts := newServer(t)
	ctx := context.Background()
	c := httpclient.New(ts.URL)

	env, err := c.Post(ctx, "/api/users/create", map[string]any{"uid": "dave", "password": "pw"})
	require.NoError(t, err)
	require.True(t, env.Indicator, env.Message)

	body := `{"uid":"dave","password":"pw"}`
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/auth/login", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "ja-JP,ja;q=0.9")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got struct {
		Indicator bool   `json:"indicator"`
		Message   string `json:"message"`
	}
	require.NoError(t, decode(resp, &got))
	assert.True(t, got.Indicator)
	assert.Equal(t, "ログインしました", got.Message)
}

// TestNonAPIPath はAPI以外のパスがパイプラインを素通りすることを検証する。
func TestNonAPIPath(t *testing.T) {
	t.Parallel()

	ts := newServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

// TestUnknownAPIPath は設定にないAPIパスが通常の失敗として返ることを検証する。
func TestUnknownAPIPath(t *testing.T) {
	t.Parallel()

	ts := newServer(t)
	env, err := httpclient.New(ts.URL).Get(context.Background(), "/api/users/missing")
	require.NoError(t, err)
	assert.False(t, env.Indicator)
	assert.Equal(t, "Unknown API: GET /api/users/missing", env.Message)
}
