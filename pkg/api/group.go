package api

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/middleware"
	"github.com/nao1215/feliz/pkg/response"
)

// Params はルートハンドラに渡す値。
type Params struct {
	// InputRequest は解析済みの入力。
	InputRequest map[string]any
	// PathParams はURLパスのパラメータ。
	PathParams map[string]string
	// APIConfigs はルート設定の元のマッピング。
	APIConfigs map[string]any
	// Configs はCONFIGS。
	Configs map[string]any
	// DB は接続ハンドラの名前空間。
	DB map[string]any
	// UserData は認証済み利用者のレコード。未解決の場合は空のマップ。
	UserData map[string]any
	// Route は解決済みのルート設定。
	Route *middleware.RouteConfig
	// Context はリクエストのコンテキスト。
	Context *middleware.Context
}

// HandlerFunc はルートハンドラ。返した値はそのままレスポンスボディになり、
// エラーは失敗エンベロープに変換される。
type HandlerFunc func(p Params) (any, error)

// Route はグループに登録されたルート。
type Route struct {
	// Method はHTTPメソッド。
	Method string
	// Path はグループ内の相対パス。
	Path string
	// Handler はルートハンドラ。
	Handler HandlerFunc
}

// Group は /api/{name} 配下に登録するルートの集まり。
type Group struct {
	name   string
	routes []Route
}

// NewGroup はグループを生成する。
func NewGroup(name string) *Group {
	return &Group{name: name}
}

// Name はグループ名を返す。
func (g *Group) Name() string {
	return g.name
}

// Prefix は登録先のURL接頭辞を返す。
func (g *Group) Prefix() string {
	return path.Join(inspector.APIPrefix, g.name)
}

// Routes は登録済みのルートを返す。
func (g *Group) Routes() []Route {
	out := make([]Route, len(g.routes))
	copy(out, g.routes)
	return out
}

// Handle はルートを追加する。
func (g *Group) Handle(method, relativePath string, h HandlerFunc) *Group {
	g.routes = append(g.routes, Route{Method: method, Path: relativePath, Handler: h})
	return g
}

// GET はGETのルートを追加する。
func (g *Group) GET(relativePath string, h HandlerFunc) *Group {
	return g.Handle(http.MethodGet, relativePath, h)
}

// POST はPOSTのルートを追加する。
func (g *Group) POST(relativePath string, h HandlerFunc) *Group {
	return g.Handle(http.MethodPost, relativePath, h)
}

// PUT はPUTのルートを追加する。
func (g *Group) PUT(relativePath string, h HandlerFunc) *Group {
	return g.Handle(http.MethodPut, relativePath, h)
}

// PATCH はPATCHのルートを追加する。
func (g *Group) PATCH(relativePath string, h HandlerFunc) *Group {
	return g.Handle(http.MethodPatch, relativePath, h)
}

// DELETE はDELETEのルートを追加する。
func (g *Group) DELETE(relativePath string, h HandlerFunc) *Group {
	return g.Handle(http.MethodDelete, relativePath, h)
}

// Mount はグループのルートを /api/{name} 配下に登録する。
func Mount(router gin.IRouter, g *Group) {
	rg := router.Group(g.Prefix())
	for _, r := range g.routes {
		rg.Handle(r.Method, r.Path, Wrap(r.Handler))
	}
}

// Wrap はルートハンドラをGinのハンドラに変換する。
// API機能が無効な場合や、ミドルウェアパイプラインを経由していない場合は
// 開発者向けの失敗を返す。
func Wrap(h HandlerFunc) gin.HandlerFunc {
	return func(gc *gin.Context) {
		c, ok := middleware.FromGin(gc)
		if !ok {
			env := response.ErrorHandler(response.NewDevelopmentError(
				"ミドルウェアパイプラインが組み込まれていないため、ハンドラを実行できません"), false)
			gc.JSON(http.StatusOK, env)
			return
		}
		if !inspector.APIEnabledFor(c.Store(), c.Path()) {
			c.SetResponse(response.ErrorHandler(response.NewDevelopmentError(
				"API機能が無効なため、ハンドラを実行できません"), c.LogIndicatorFalse()))
			return
		}

		result, err := h(newParams(gc, c))
		if err != nil {
			c.SetResponse(response.ErrorHandler(err, c.LogIndicatorFalse()))
			return
		}
		c.SetResponse(result)
	}
}

func newParams(gc *gin.Context, c *middleware.Context) Params {
	pathParams := make(map[string]string, len(gc.Params))
	for _, p := range gc.Params {
		pathParams[p.Key] = p.Value
	}
	return Params{
		InputRequest: c.Input,
		PathParams:   pathParams,
		APIConfigs:   c.APIConfigs(),
		Configs:      c.Configs(),
		DB:           c.DB(),
		UserData:     c.UserData(),
		Route:        c.Route,
		Context:      c,
	}
}
