package dbhandler

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
)

// ConnConfig はINIファイルの1セクションが表す接続設定。
type ConnConfig struct {
	// Alias はセクション名。接続の論理名として使う。
	Alias string `ini:"-"`
	// DBType はデータベース種別。
	DBType string `ini:"db_type" validate:"required,oneof=mongo postgres"`
	// Host は接続先ホスト。
	Host string `ini:"host" validate:"required"`
	// Port は接続先ポート。
	Port int `ini:"port" validate:"required,min=1,max=65535"`
	// Username は接続ユーザー。
	Username string `ini:"username"`
	// Password はパスワード。
	Password string `ini:"password"`
	// Database はデータベース名。SQLiteの場合はファイルパス。
	Database string `ini:"database" validate:"required"`
}

var validate = validator.New()

// ParseSection はINIのセクションを ConnConfig に変換して検証する。
func ParseSection(sec *ini.Section) (ConnConfig, error) {
	cfg := ConnConfig{Alias: sec.Name()}
	if err := sec.MapTo(&cfg); err != nil {
		return ConnConfig{}, fmt.Errorf("(%s) 接続設定の読み込みに失敗: %w", sec.Name(), err)
	}
	if err := validate.Struct(cfg); err != nil {
		return ConnConfig{}, fmt.Errorf("(%s) 接続設定が不正です: %w", sec.Name(), err)
	}
	return cfg, nil
}

// Address は "host:port" を返す。
func (c ConnConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PostgresDSN はpgx用の接続URLを返す。
func (c ConnConfig) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Address(),
		Path:   "/" + c.Database,
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}

// MongoURI はMongoDB用の接続URIを返す。
func (c ConnConfig) MongoURI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   c.Address(),
		Path:   "/",
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}
