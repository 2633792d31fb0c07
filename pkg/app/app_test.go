package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

// TestNew はアプリケーションハンドルの生成を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("既定値で生成されること", func(t *testing.T) {
		t.Parallel()

		a := New()
		assert.NotNil(t, a.Engine)
		assert.NotNil(t, a.Store)
		assert.NotNil(t, a.Encoder)
		assert.Nil(t, a.JWT)
		assert.Equal(t, DefaultConfigDir, a.ConfigDir)
	})

	t.Run("オプションで差し替えられること", func(t *testing.T) {
		t.Parallel()

		s := store.New()
		a := New(WithConfigDir("/etc/feliz"), WithStore(s))
		assert.Equal(t, "/etc/feliz", a.ConfigDir)
		assert.Same(t, s, a.Store)
	})
}

// TestAddr はリッスンアドレスの組み立てを検証する。
func TestAddr(t *testing.T) {
	t.Parallel()

	a := New()
	assert.Equal(t, ":8080", a.Addr())

	require.NoError(t, a.Store.SetConfig("SERVER", map[string]any{"HOST": "127.0.0.1", "PORT": 5000}))
	assert.Equal(t, "127.0.0.1:5000", a.Addr())
}

// TestRender はJSONの書き出しを検証する。
func TestRender(t *testing.T) {
	t.Parallel()

	a := New()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	a.Render(c, response.True("ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"indicator":true,"message":"ok","content":null}`, w.Body.String())
}

// TestClose は接続ハンドラのクローズを検証する。
func TestClose(t *testing.T) {
	t.Parallel()

	a := New()
	ok := &closer{}
	ng := &closer{err: errors.New("close failed")}
	require.NoError(t, a.Store.SetDB(store.Postgres, "main", ok))
	require.NoError(t, a.Store.SetDB(store.Mongo, "main", ng))
	require.NoError(t, a.Store.SetDB(store.Mongo, "plain", "not-a-closer"))
	extra := &closer{}
	a.AddCloser(extra)

	err := a.Close()
	assert.ErrorContains(t, err, "close failed")
	assert.True(t, ok.closed)
	assert.True(t, ng.closed)
	assert.True(t, extra.closed)
}

// TestRun はサーバーの起動と停止を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	a := New()
	require.NoError(t, a.Store.SetConfig("SERVER", map[string]any{"HOST": "127.0.0.1", "PORT": 0}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
}
