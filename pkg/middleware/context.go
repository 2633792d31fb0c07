package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/nao1215/feliz/pkg/app"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
)

// contextKey はGinコンテキストに *Context を格納するキー。
const contextKey = "feliz.context"

const jsonContentType = "application/json; charset=utf-8"

// RouteConfig はAPI設定ファイルの1エントリ（サービス/操作/HTTPメソッド）。
type RouteConfig struct {
	// Authentication はJWT認証が必要かどうか。
	Authentication bool `mapstructure:"Authentication"`
	// Permission は呼び出しを許可する権限の一覧。
	Permission []string `mapstructure:"Permission"`
	// Mandatory は必須の入力キー。
	Mandatory []string `mapstructure:"Mandatory"`
	// Optionals は任意の入力キー。
	Optionals []string `mapstructure:"Optionals"`
	// OptionalDefaults は任意キーの既定値。Optionalsと同じ長さのリストか、キーから値へのマップ。
	OptionalDefaults any `mapstructure:"OptionalDefaults"`
	// InputInspect は入力の型検査を行うかどうか。
	InputInspect bool `mapstructure:"InputInspect"`
	// InputType はキーごとの型規則（"type[::nullable]"）。
	InputType map[string]string `mapstructure:"InputType"`
}

// DecodeRouteConfig はAPI設定のマッピングを RouteConfig に変換する。
func DecodeRouteConfig(raw map[string]any) (*RouteConfig, error) {
	rc := &RouteConfig{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           rc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("API設定デコーダの生成に失敗: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, response.Developmentf("API設定の形式が不正です: %v", err)
	}
	return rc, nil
}

// Response はルートハンドラの結果。
type Response struct {
	// Status はHTTPステータス。0の場合は200。
	Status int
	// Body はハンドラが返した値。
	Body any
	// Data はエンコード済みのボディ。nilの場合はBodyをJSONに変換して書き出す。
	Data []byte
	// ContentType はDataのContent-Type。
	ContentType string
}

// Context はリクエスト1件の処理中だけ存在するコンテキスト。
// ミドルウェアが値を書き込み、ルートハンドラが読み出す。
type Context struct {
	// Gin は元のGinコンテキスト。
	Gin *gin.Context
	// App はアプリケーションハンドル。
	App *app.App
	// Globals は設定ストアのトップレベルエントリのスナップショット。
	Globals map[string]any
	// Input は解析済みの入力。
	Input map[string]any
	// Route は解決済みのルート設定。
	Route *RouteConfig
	// RouteRaw はルート設定の元のマッピング。
	RouteRaw map[string]any
	// Claims は検証済みトークンのクレーム。
	Claims jwt.MapClaims
	// RequestID はリクエストID。
	RequestID string
	// Response はルートハンドラの結果。
	Response *Response

	users             []map[string]any
	usersLoaded       bool
	safeKeysBuilt     bool
	logIndicatorFalse bool
}

// NewContext はGinコンテキストから Context を生成する。
func NewContext(gc *gin.Context, a *app.App) *Context {
	return &Context{
		Gin:       gc,
		App:       a,
		Globals:   map[string]any{},
		Input:     map[string]any{},
		RequestID: gc.GetString(RequestIDKey),
	}
}

// FromGin はGinコンテキストに格納された Context を返す。
func FromGin(gc *gin.Context) (*Context, bool) {
	v, ok := gc.Get(contextKey)
	if !ok {
		return nil, false
	}
	c, ok := v.(*Context)
	return c, ok
}

// Request はHTTPリクエストを返す。
func (c *Context) Request() *http.Request {
	return c.Gin.Request
}

// Method はHTTPメソッドを返す。
func (c *Context) Method() string {
	return c.Gin.Request.Method
}

// Path はリクエストパスを返す。
func (c *Context) Path() string {
	return c.Gin.Request.URL.Path
}

// Store は設定ストアを返す。
func (c *Context) Store() *store.Store {
	return c.App.Store
}

// Configs はスナップショットのCONFIGSを返す。
func (c *Context) Configs() map[string]any {
	return mapping(c.Globals[store.KeyConfigs])
}

// DB はスナップショットのDBを返す。
func (c *Context) DB() map[string]any {
	return mapping(c.Globals[store.KeyDB])
}

// APIConfigs はルート設定の元のマッピングを返す。
func (c *Context) APIConfigs() map[string]any {
	return mapping(c.RouteRaw)
}

// UserData は利用者レコードが1件だけ解決されていればそれを、そうでなければ空のマップを返す。
func (c *Context) UserData() map[string]any {
	if len(c.users) == 1 {
		return c.users[0]
	}
	return map[string]any{}
}

// LogIndicatorFalse は業務上の失敗をログに出す設定かを返す。
func (c *Context) LogIndicatorFalse() bool {
	return c.logIndicatorFalse
}

// SetResponse はルートハンドラの結果を設定する。
func (c *Context) SetResponse(v any) {
	c.Response = &Response{Body: v}
}

func mapping(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
