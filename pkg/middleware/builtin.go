package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
)

// apiMethods はルート設定を解決するHTTPメソッド。
var apiMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPatch:  {},
	http.MethodPut:    {},
	http.MethodDelete: {},
}

func isAPIMethod(method string) bool {
	_, ok := apiMethods[method]
	return ok
}

// globalInjection は設定ストアのスナップショットとルート設定をコンテキストに注入する。
// ストアが空の場合、API以外のパスの場合、未対応のメソッドの場合はパイプラインを打ち切る。
type globalInjection struct{ Base }

func (globalInjection) ProcessRequest(c *Context, stop func()) error {
	s := c.Store()
	if !inspector.GlobalsLoaded(s) {
		log.Warn().Str("path", c.Path()).Msg("設定ストアがロードされていません")
		stop()
		return nil
	}
	c.Globals = s.Snapshot()

	if !inspector.APIEnabledFor(s, c.Path()) || !isAPIMethod(c.Method()) {
		stop()
		return nil
	}

	raw, err := resolveRoute(c.Globals[store.KeyAPI], c.Path(), c.Method())
	if err != nil {
		return err
	}
	route, err := DecodeRouteConfig(raw)
	if err != nil {
		return err
	}
	c.RouteRaw = raw
	c.Route = route
	return nil
}

// resolveRoute は /api/{service}/{operation} とメソッドからルート設定を引く。
// 設定にないパスやメソッドはクライアント起因として IndicatorFalseError を返す。
func resolveRoute(apiConfigs any, path, method string) (map[string]any, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 {
		return nil, response.Failf("Unknown API: %s %s", method, path)
	}
	service, operation := segments[1], segments[2]
	if service == "" || operation == "" || strings.Contains(service+operation, ".") {
		return nil, response.Failf("Unknown API: %s %s", method, path)
	}

	api, ok := apiConfigs.(map[string]any)
	if !ok {
		return nil, response.Developmentf("API設定がロードされていません: %s %s", method, path)
	}
	v, err := store.GetDict(api, service+"."+operation+"."+method, nil)
	if err != nil {
		return nil, response.Developmentf("API設定の参照に失敗: %v", err)
	}
	switch raw := v.(type) {
	case nil:
		return nil, response.Failf("Unknown API: %s %s", method, path)
	case map[string]any:
		return raw, nil
	default:
		return nil, response.Developmentf("API設定の %s/%s の %s はマッピングである必要があります: %T", service, operation, method, v)
	}
}

// inputParsing はリクエストの入力を解析する。
// GET/DELETEはクエリ文字列、POST/PATCH/PUTはJSONボディを使い、
// 解析に失敗した場合は空の入力とする。それ以外のメソッドではパイプラインを打ち切る。
type inputParsing struct{ Base }

func (inputParsing) ProcessRequest(c *Context, stop func()) error {
	switch c.Method() {
	case http.MethodGet, http.MethodDelete:
		c.Input = queryInput(c)
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		c.Input = bodyInput(c)
	default:
		c.Input = map[string]any{}
		stop()
	}
	return nil
}

// queryInput はクエリ文字列の各キーの最初の値を返す。
func queryInput(c *Context) map[string]any {
	input := map[string]any{}
	for k, vs := range c.Request().URL.Query() {
		if len(vs) > 0 {
			input[k] = vs[0]
		}
	}
	return input
}

// bodyInput はJSONボディをマッピングとして読み込む。ボディは後続の処理のために復元する。
func bodyInput(c *Context) map[string]any {
	req := c.Request()
	if req.Body == nil {
		return map[string]any{}
	}
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return map[string]any{}
	}
	req.Body = io.NopCloser(bytes.NewReader(b))

	input, err := DecodeJSONObject(b)
	if err != nil {
		return map[string]any{}
	}
	return input
}

// DecodeJSONObject はJSONオブジェクトをデコードする。
// 整数はint64、小数はfloat64として扱い、intとfloatの型検査ができるようにする。
func DecodeJSONObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	m, ok := normalizeNumbers(v).(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return m, nil
}

var errNotObject = errors.New("JSONボディがオブジェクトではありません")

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}
