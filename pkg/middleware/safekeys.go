package middleware

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/response"
)

// EmptyInput は入力されず、既定値も宣言されていない任意キーの値。
// 省略ではなくこの値で埋めることで、ハンドラは「未入力」を区別できる。
type EmptyInput struct {
	// Key は対象のキー。
	Key string
}

func (e EmptyInput) String() string {
	return "(EmptyInput) " + e.Key
}

// MarshalJSON はnullとして出力する。
func (EmptyInput) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IsEmptyInput はvが EmptyInput かを返す。
func IsEmptyInput(v any) bool {
	_, ok := v.(EmptyInput)
	return ok
}

// safeInput は任意キーの既定値を補完した入力を返す。補完はリクエストごとに1回だけ行う。
func safeInput(c *Context) (map[string]any, error) {
	if c.safeKeysBuilt || !isAPIMethod(c.Method()) {
		return c.Input, nil
	}
	if c.Route == nil {
		return nil, response.NewDevelopmentError("ルート設定が解決されていません")
	}
	if c.Input == nil {
		c.Input = map[string]any{}
	}
	if err := applyOptionalDefaults(c.Input, c.Route); err != nil {
		return nil, err
	}
	c.safeKeysBuilt = true
	return c.Input, nil
}

// applyOptionalDefaults は入力にない任意キーを既定値で埋める。
func applyOptionalDefaults(input map[string]any, route *RouteConfig) error {
	switch defaults := route.OptionalDefaults.(type) {
	case nil:
		return nil
	case []any:
		if len(defaults) != len(route.Optionals) {
			return response.NewDevelopmentError("The length of 'Optionals' and 'OptionalDefaults' in the API config should be the same.")
		}
		for i, key := range route.Optionals {
			if _, ok := input[key]; !ok {
				input[key] = defaults[i]
			}
		}
	case map[string]any:
		declared := make(map[string]struct{}, len(route.Optionals))
		for _, key := range route.Optionals {
			declared[key] = struct{}{}
		}
		for key := range defaults {
			if _, ok := declared[key]; !ok {
				return response.Developmentf("The keys in OptionalDefaults should be included in Optionals: %s", key)
			}
		}
		for _, key := range route.Optionals {
			if _, ok := input[key]; ok {
				continue
			}
			if v, ok := defaults[key]; ok {
				input[key] = v
			} else {
				input[key] = EmptyInput{Key: key}
			}
		}
	default:
		return response.Developmentf("OptionalDefaults はリストかマップである必要があります: %T", route.OptionalDefaults)
	}
	return nil
}

type safeMandatoryKeys struct{ Base }

// SafeMandatoryKeys はルート設定のMandatoryに挙げたキーがすべて入力にあることを検証する。
// 不足しているキーはまとめて1つのメッセージで報告する。
func SafeMandatoryKeys() Middleware {
	return safeMandatoryKeys{}
}

func (safeMandatoryKeys) ProcessRequest(c *Context, _ func()) error {
	if !inspector.APIEnabledFor(c.Store(), c.Path()) {
		return nil
	}
	input, err := safeInput(c)
	if err != nil {
		return err
	}
	if c.Route == nil {
		return nil
	}
	var missing []string
	for _, key := range c.Route.Mandatory {
		if _, ok := input[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return response.Fail("No input: " + strings.Join(missing, ","))
	}
	return nil
}

type safeInputType struct{ Base }

// SafeInputType はルート設定のInputTypeに従って入力値の型を検証する。
// 規則は "type" または "type::nullable" の形式で、typeには
// str, string, int, float, bool, list, dict, json, json-list, json-dict を指定できる。
func SafeInputType() Middleware {
	return safeInputType{}
}

func (safeInputType) ProcessRequest(c *Context, _ func()) error {
	if !inspector.APIEnabledFor(c.Store(), c.Path()) {
		return nil
	}
	input, err := safeInput(c)
	if err != nil {
		return err
	}
	if c.Route == nil || !c.Route.InputInspect {
		return nil
	}
	if c.Route.InputType == nil {
		return response.NewDevelopmentError("InputInspect を使う場合は InputType を設定してください")
	}

	keys := make([]string, 0, len(c.Route.InputType))
	for k := range c.Route.InputType {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rule, err := parseTypeRule(c.Route.InputType[key])
		if err != nil {
			return err
		}
		value, ok := input[key]
		if !ok {
			return response.Developmentf("InputType のキー '%s' が入力にも任意キーにもありません", key)
		}
		if value == nil {
			if !rule.nullable {
				return response.Failf("The input type of '%s' should not be null but *%s", key, rule.typeName)
			}
			continue
		}
		if IsEmptyInput(value) {
			continue
		}
		if !rule.validate(value) {
			return response.Failf("The input type of '%s' should not be *%s but *%s", key, TypeName(value), rule.typeName)
		}
	}
	return nil
}

// typeRule は解析済みの型規則。
type typeRule struct {
	typeName string
	nullable bool
	validate func(any) bool
}

// validators は型名から検証関数への対応表。
var validators = map[string]func(any) bool{
	"str":       isString,
	"string":    isString,
	"int":       isInt,
	"float":     isFloat,
	"bool":      isBool,
	"list":      isList,
	"dict":      isDict,
	"json":      func(v any) bool { _, ok := parseJSONText(v); return ok },
	"json-list": func(v any) bool { p, ok := parseJSONText(v); return ok && isList(p) },
	"json-dict": func(v any) bool { p, ok := parseJSONText(v); return ok && isDict(p) },
}

func parseTypeRule(s string) (typeRule, error) {
	parts := strings.Split(s, "::")
	rule := typeRule{typeName: strings.TrimSpace(parts[0])}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "nullable" {
			rule.nullable = true
		}
	}
	validate, ok := validators[rule.typeName]
	if !ok {
		return typeRule{}, response.Developmentf("未対応の型です: %q", rule.typeName)
	}
	rule.validate = validate
	return rule, nil
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func isDict(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// parseJSONText はvがJSONとして解釈できる文字列ならその値を返す。
func parseJSONText(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// TypeName は型規則と同じ語彙で値の型名を返す。
func TypeName(v any) string {
	switch {
	case v == nil:
		return "null"
	case isString(v):
		return "str"
	case isBool(v):
		return "bool"
	case isInt(v):
		return "int"
	case isFloat(v):
		return "float"
	case isList(v):
		return "list"
	case isDict(v):
		return "dict"
	default:
		return fmt.Sprintf("%T", v)
	}
}
