package initialware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsOrigin(t *testing.T, e *gin.Engine, origin string) string {
	t.Helper()
	e.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w.Header().Get("Access-Control-Allow-Origin")
}

// TestCORSSetup はCORSの初期化を検証する。
func TestCORSSetup(t *testing.T) {
	t.Parallel()

	configs := func(enabled bool) map[string]any {
		return map[string]any{"CORS": map[string]any{
			"CORS_ENABLE": enabled,
			"SETTINGS":    map[string]any{"origins": []any{"https://configured.example"}},
		}}
	}

	t.Run("設定ファイルのSETTINGSを使うこと", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, configs(true))
		require.NoError(t, run(t, a, CORSSetup{}))
		assert.Equal(t, "https://configured.example", corsOrigin(t, a.Engine, "https://configured.example"))
	})

	t.Run("明示的な設定を優先すること", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, configs(true))
		explicit := middleware.DefaultCORSSettings()
		explicit.Origins = []string{"https://explicit.example"}
		require.NoError(t, run(t, a, CORSSetup{Settings: &explicit}))

		assert.Equal(t, "https://explicit.example", corsOrigin(t, a.Engine, "https://explicit.example"))
	})

	t.Run("明示的な設定があれば設定ファイルのオリジンは許可しないこと", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, configs(true))
		explicit := middleware.DefaultCORSSettings()
		explicit.Origins = []string{"https://explicit.example"}
		require.NoError(t, run(t, a, CORSSetup{Settings: &explicit}))

		assert.Empty(t, corsOrigin(t, a.Engine, "https://configured.example"))
	})

	t.Run("CORS機能が無効なら組み込まないこと", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, configs(false))
		require.NoError(t, run(t, a, CORSSetup{}))
		assert.Empty(t, corsOrigin(t, a.Engine, "https://configured.example"))
	})
}
