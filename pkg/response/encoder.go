package response

import (
	"encoding"
	"fmt"
	"reflect"
	"sync"

	"github.com/goccy/go-json"
)

// JSONHook は標準のJSON変換では表現できない値を変換するフック。
// 変換できない値に対しては ok=false を返し、標準の変換に任せる。
type JSONHook func(v any) (converted any, ok bool)

// Encoder はアプリケーション全体で共有するJSONエンコーダ。
type Encoder struct {
	mu   sync.RWMutex
	hook JSONHook
}

// NewEncoder はフック未設定のエンコーダを生成する。
func NewEncoder() *Encoder {
	return &Encoder{}
}

// SetHook はオブジェクト変換フックを設定する。nilで解除する。
func (e *Encoder) SetHook(hook JSONHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hook = hook
}

// Marshal は値をJSONへ変換する。
func (e *Encoder) Marshal(v any) ([]byte, error) {
	e.mu.RLock()
	hook := e.hook
	e.mu.RUnlock()

	if hook != nil {
		v = applyHook(hook, v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSONへの変換に失敗: %w", err)
	}
	return b, nil
}

// applyHook はmap/sliceを辿り、基本型以外の値にフックを適用する。
// 独自のJSON表現を持つ値は辿らずにフックへ渡し、断られればそのまま返す。
func applyHook(hook JSONHook, v any) any {
	if v == nil {
		return nil
	}
	if env, ok := v.(Envelope); ok {
		env.Content = applyHook(hook, env.Content)
		return env
	}
	if selfEncoding(v) {
		return callHook(hook, v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = applyHook(hook, iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = applyHook(hook, rv.Index(i).Interface())
		}
		return out
	}
	return callHook(hook, v)
}

func callHook(hook JSONHook, v any) any {
	converted, ok := hook(v)
	if !ok {
		return v
	}
	if reflect.TypeOf(converted) == reflect.TypeOf(v) {
		return converted
	}
	return applyHook(hook, converted)
}

// selfEncoding は値が自前のJSON/テキスト表現を持つかどうかを返す。
func selfEncoding(v any) bool {
	switch v.(type) {
	case json.Marshaler, encoding.TextMarshaler:
		return true
	}
	return false
}
