package middleware

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/feliz/pkg/dbhandler"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/response"
)

// defaultPermissionKey はトークンと利用者レコードで権限を表すキー。
const defaultPermissionKey = "permission"

// UserLookup は利用者レコードの検索方法。
type UserLookup struct {
	// Handler は検索に使う接続ハンドラ。nilの場合はKindとAliasで設定ストアから解決する。
	Handler dbhandler.Handler
	// Kind はデータベース種別。
	Kind string
	// Alias は接続の論理名。
	Alias string
	// Target はテーブル名またはコレクション名。
	Target string
	// UniqueKey は利用者を一意に特定するキー。トークンのクレームとレコードの両方に存在する。
	UniqueKey string
	// PermissionKey は権限を表すキー。空の場合は "permission"。
	PermissionKey string
}

func (l UserLookup) permissionKey() string {
	if l.PermissionKey == "" {
		return defaultPermissionKey
	}
	return l.PermissionKey
}

func (l UserLookup) handler(c *Context) (dbhandler.Handler, error) {
	if l.Handler != nil {
		return l.Handler, nil
	}
	v, ok := c.Store().DB(l.Kind, l.Alias)
	if !ok {
		return nil, response.Developmentf("接続ハンドラ %s.%s が登録されていません", l.Kind, l.Alias)
	}
	h, ok := v.(dbhandler.Handler)
	if !ok {
		return nil, response.Developmentf("%s.%s は接続ハンドラではありません: %T", l.Kind, l.Alias, v)
	}
	return h, nil
}

// userRecords はトークンのUniqueKeyで利用者レコードを検索する。結果はリクエスト内で再利用する。
func userRecords(c *Context, l UserLookup) ([]map[string]any, error) {
	if c.usersLoaded {
		return c.users, nil
	}
	uid, ok := c.Claims[l.UniqueKey]
	if !ok || uid == nil || uid == "" {
		return nil, response.Developmentf("トークンに %s の値がありません", l.UniqueKey)
	}
	h, err := l.handler(c)
	if err != nil {
		return nil, err
	}

	records, err := h.QueryRecords(c.Request().Context(), l.Target,
		[]dbhandler.Condition{{Field: l.UniqueKey, Value: uid}}, 0)
	if err != nil {
		return nil, response.Fail(err.Error())
	}
	for _, r := range records {
		delete(r, "password")
	}
	c.users = records
	c.usersLoaded = true
	return records, nil
}

// requiresUser は利用者レコードを使うステージが動作する条件。
func requiresUser(c *Context) bool {
	s := c.Store()
	return inspector.JWTEnabled(s) &&
		inspector.APIEnabledFor(s, c.Path()) &&
		inspector.DBEnabled(s) &&
		c.Route != nil && c.Route.Authentication
}

type userExistence struct {
	Base
	lookup UserLookup
}

// UserExistence はトークンの利用者がデータベースにちょうど1件存在することを検証する。
func UserExistence(l UserLookup) Middleware {
	return userExistence{lookup: l}
}

func (m userExistence) ProcessRequest(c *Context, _ func()) error {
	if !requiresUser(c) {
		return nil
	}
	users, err := userRecords(c, m.lookup)
	if err != nil {
		return err
	}
	switch {
	case len(users) == 0:
		return response.Failf("This account (%v) is not in database.", c.Claims[m.lookup.UniqueKey])
	case len(users) > 1:
		return response.Fail("User ID Query Error: Length > 1")
	}
	return nil
}

type userDatabasePermission struct {
	Base
	lookup UserLookup
}

// UserDatabasePermission はトークンの権限とデータベース上の権限が一致することを検証する。
func UserDatabasePermission(l UserLookup) Middleware {
	return userDatabasePermission{lookup: l}
}

func (m userDatabasePermission) ProcessRequest(c *Context, _ func()) error {
	if !requiresUser(c) {
		return nil
	}
	users, err := userRecords(c, m.lookup)
	if err != nil {
		return err
	}
	if len(users) != 1 {
		return response.Fail("User ID Query Error: Length != 1")
	}
	key := m.lookup.permissionKey()
	if stringValue(c.Claims[key]) != stringValue(users[0][key]) {
		return response.Fail("Your token permission is not consistent with permission in database.")
	}
	return nil
}

type userAPIPermission struct {
	Base
	permissionKey string
}

// UserAPIPermission はトークンの権限がルート設定のPermissionに含まれることを検証する。
// データベースは参照しない。
func UserAPIPermission() Middleware {
	return userAPIPermission{permissionKey: defaultPermissionKey}
}

// UserAPIPermissionWithKey は権限のクレーム名を指定する UserAPIPermission。
func UserAPIPermissionWithKey(key string) Middleware {
	return userAPIPermission{permissionKey: key}
}

func (m userAPIPermission) ProcessRequest(c *Context, _ func()) error {
	s := c.Store()
	if !inspector.JWTEnabled(s) || !inspector.APIEnabledFor(s, c.Path()) {
		return nil
	}
	if c.Route == nil || !c.Route.Authentication {
		return nil
	}
	if !slices.Contains(c.Route.Permission, stringValue(c.Claims[m.permissionKey])) {
		return response.Fail("You don't have the permission to call this API.")
	}
	return nil
}

type userStatusCheck struct {
	Base
	lookup    UserLookup
	statusKey string
	excluded  []string
}

// UserStatusCheck は利用者レコードの状態が除外リストに含まれないことを検証する。
// statusKeyが空の場合は "status" を使う。
func UserStatusCheck(l UserLookup, statusKey string, excluded ...string) Middleware {
	if statusKey == "" {
		statusKey = "status"
	}
	return userStatusCheck{lookup: l, statusKey: statusKey, excluded: excluded}
}

func (m userStatusCheck) ProcessRequest(c *Context, _ func()) error {
	if !requiresUser(c) {
		return nil
	}
	users, err := userRecords(c, m.lookup)
	if err != nil {
		return err
	}
	if len(users) != 1 {
		return response.Fail("User ID Query Error: Length != 1")
	}
	raw, ok := users[0][m.statusKey]
	if !ok {
		return response.Developmentf("利用者レコードに %s がありません", m.statusKey)
	}
	status := stringValue(raw)
	if slices.Contains(m.excluded, status) {
		return response.Fail(StatusMessage(status))
	}
	return nil
}

// stringValue は値を比較用の文字列に変換する。nilは空文字列になる。
func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// StatusMessage は除外された状態の利用者へ返すメッセージを組み立てる。
func StatusMessage(status string) string {
	return "This user is " + capitalize(status)
}

// capitalize は先頭を大文字、残りを小文字にする。
func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	r := []rune(lower)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
