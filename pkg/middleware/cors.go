package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mitchellh/mapstructure"
)

// CORSSettings はクロスオリジンリクエストの許可設定。
type CORSSettings struct {
	// Origins は許可するオリジン。"*" はすべてのオリジンを許可する。
	Origins []string `mapstructure:"origins"`
	// Methods は許可するメソッド。
	Methods []string `mapstructure:"methods"`
	// AllowHeaders は許可するリクエストヘッダー。
	AllowHeaders []string `mapstructure:"allow_headers"`
	// ExposeHeaders はブラウザに公開するレスポンスヘッダー。
	ExposeHeaders []string `mapstructure:"expose_headers"`
	// SupportsCredentials は資格情報付きリクエストを許可するかどうか。
	SupportsCredentials bool `mapstructure:"supports_credentials"`
	// MaxAge はプリフライト結果のキャッシュ秒数。
	MaxAge int `mapstructure:"max_age"`
}

// DefaultCORSSettings は設定がない項目に使う既定値を返す。
func DefaultCORSSettings() CORSSettings {
	return CORSSettings{
		Origins:      []string{"*"},
		Methods:      []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       86400,
	}
}

// DecodeCORSSettings はCONFIGS.CORS.SETTINGSのマッピングを CORSSettings に変換する。
// 指定されなかった項目は既定値のまま残る。
func DecodeCORSSettings(raw map[string]any) (CORSSettings, error) {
	settings := DefaultCORSSettings()
	if len(raw) == 0 {
		return settings, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &settings,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return settings, fmt.Errorf("CORS設定デコーダの生成に失敗: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return settings, fmt.Errorf("CORS設定の読み込みに失敗: %w", err)
	}
	return settings, nil
}

func (s CORSSettings) allowOrigin(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	if slices.Contains(s.Origins, "*") {
		if s.SupportsCredentials {
			return origin, true
		}
		return "*", true
	}
	if slices.Contains(s.Origins, origin) {
		return origin, true
	}
	return "", false
}

// CORS は設定に従ってクロスオリジンリクエストを許可するGinミドルウェアを返す。
// OPTIONSリクエストはプリフライトとして204で応答する。
func CORS(settings CORSSettings) gin.HandlerFunc {
	methods := strings.Join(settings.Methods, ", ")
	allowHeaders := strings.Join(settings.AllowHeaders, ", ")
	exposeHeaders := strings.Join(settings.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(settings.MaxAge)

	return func(c *gin.Context) {
		if allowed, ok := settings.allowOrigin(c.GetHeader("Origin")); ok {
			c.Header("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
			if methods != "" {
				c.Header("Access-Control-Allow-Methods", methods)
			}
			if allowHeaders != "" {
				c.Header("Access-Control-Allow-Headers", allowHeaders)
			}
			if exposeHeaders != "" {
				c.Header("Access-Control-Expose-Headers", exposeHeaders)
			}
			if settings.SupportsCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			if settings.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", maxAge)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
