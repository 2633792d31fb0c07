package dbhandler

import (
	"errors"
	"fmt"
)

// InitType はスキーマモデルの初期化単位。
type InitType string

const (
	// InitTable はテーブルを作成する。
	InitTable InitType = "table"
	// InitSchema はスキーマ（名前空間）を作成する。
	InitSchema InitType = "schema"
)

// ModelMeta はスキーマモデルの初期化設定。
type ModelMeta struct {
	// Name はテーブル名またはスキーマ名。
	Name string
	// Initialize は起動時に作成するかどうか。
	Initialize bool
	// InitType は初期化単位。
	InitType InitType
	// Authorization はスキーマの所有者。空の場合、接続ユーザーが使われる。
	Authorization string
}

// SchemaModel は起動時にDDLを生成するモデル。
type SchemaModel interface {
	// Meta は初期化設定を返す。
	Meta() ModelMeta
	// CreateSQL はDDLを返す。authorizationはスキーマの所有者で、テーブルでは無視してよい。
	CreateSQL(authorization string) ([]string, error)
}

// Table はカラム定義からCREATE TABLE文を生成するモデル。
type Table struct {
	// Name はテーブル名。
	Name string
	// Columns はカラム定義と制約。
	Columns []string
	// Skip がtrueの場合、起動時に作成しない。
	Skip bool
}

// Meta は初期化設定を返す。
func (t Table) Meta() ModelMeta {
	return ModelMeta{Name: t.Name, Initialize: !t.Skip, InitType: InitTable}
}

// CreateSQL はCREATE TABLE文を返す。
func (t Table) CreateSQL(string) ([]string, error) {
	if err := ValidIdentifier(t.Name); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("テーブル %s にカラムがありません", t.Name)
	}
	stmt := "CREATE TABLE IF NOT EXISTS " + t.Name + " ("
	for i, c := range t.Columns {
		if i > 0 {
			stmt += ", "
		}
		stmt += c
	}
	return []string{stmt + ")"}, nil
}

// Schema はCREATE SCHEMA文を生成するモデル。
type Schema struct {
	// Name はスキーマ名。
	Name string
	// Authorization はスキーマの所有者。空の場合は接続ユーザーが使われる。
	Authorization string
	// Skip がtrueの場合、起動時に作成しない。
	Skip bool
}

// Meta は初期化設定を返す。
func (s Schema) Meta() ModelMeta {
	return ModelMeta{Name: s.Name, Initialize: !s.Skip, InitType: InitSchema, Authorization: s.Authorization}
}

// CreateSQL はCREATE SCHEMA文を返す。
func (s Schema) CreateSQL(authorization string) ([]string, error) {
	if err := ValidIdentifier(s.Name); err != nil {
		return nil, err
	}
	stmt := "CREATE SCHEMA IF NOT EXISTS " + s.Name
	if authorization != "" {
		if err := ValidIdentifier(authorization); err != nil {
			return nil, err
		}
		stmt += " AUTHORIZATION " + authorization
	}
	return []string{stmt}, nil
}

// CollectSQL はモデルのDDLを順に集める。
// スキーマ単位の初期化で所有者が未指定の場合はusernameを所有者として渡す。
// 所有者はモデルに書き戻さないため、別の接続先に影響しない。
func CollectSQL(models []SchemaModel, username string) ([]string, error) {
	var stmts []string
	var errs []error
	for _, m := range models {
		meta := m.Meta()
		if !meta.Initialize {
			continue
		}
		authorization := meta.Authorization
		if meta.InitType == InitSchema && authorization == "" {
			authorization = username
		}
		sqls, err := m.CreateSQL(authorization)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", meta.Name, err))
			continue
		}
		stmts = append(stmts, sqls...)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return stmts, nil
}
