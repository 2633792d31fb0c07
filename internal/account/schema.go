package account

import (
	"embed"

	"github.com/nao1215/feliz/pkg/middleware"
	"github.com/nao1215/feliz/pkg/store"
)

// Migrations は利用者テーブルのマイグレーション。
//
//go:embed migrations/*.up.sql
var Migrations embed.FS

// MigrationDir はMigrations内のディレクトリ。
const MigrationDir = "migrations"

// Alias は利用者テーブルを持つ接続の論理名。
const Alias = "main"

const (
	usersTable        = "users"
	loginHistoryTable = "login_history"
)

// 利用者の状態。
const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// 利用者の権限。匿名の登録は常に DefaultPermission になる。
const (
	DefaultPermission = "user"
	PermissionAdmin   = "admin"
)

var permissions = []string{PermissionAdmin, DefaultPermission}

// Lookup は認証済みルートで利用者レコードを引くための設定。
var Lookup = middleware.UserLookup{
	Kind:      store.Postgres,
	Alias:     Alias,
	Target:    usersTable,
	UniqueKey: "uid",
}
