// Package inspector は設定ストアを参照し、各機能が有効かどうかを判定する。
// どの関数も設定の欠落や型の不一致ではエラーにせず false を返す。
package inspector

import (
	"strings"

	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
)

// APIPrefix はAPIリクエストとして扱うパスの接頭辞。
const APIPrefix = "/api"

// 各機能の有効フラグ。
const (
	flagJWT  = "JWT_ENABLE"
	flagCORS = "CORS_ENABLE"
	flagDB   = "DB_ENABLE"
	flagAPI  = "API_ENABLE"
)

// GlobalsLoaded はストアに何らかの値がロードされているかを返す。
func GlobalsLoaded(s *store.Store) bool {
	return s != nil && s.Len() > 0
}

// ConfigsLoaded はCONFIGSが空でないかを返す。空の場合はデバッグログを出す。
func ConfigsLoaded(s *store.Store) bool {
	if s == nil {
		return false
	}
	if len(s.Configs()) == 0 {
		log.Debug().Msg("CONFIGSが空のため、すべての機能を無効として扱います")
		return false
	}
	return true
}

// enabled は CONFIGS.<section>.<flag> がtrueかを返す。
func enabled(s *store.Store, section, flag string) bool {
	if !ConfigsLoaded(s) {
		return false
	}
	sec, ok := s.Section(section)
	if !ok {
		return false
	}
	if len(sec) == 0 {
		log.Debug().Str("section", section).Msg("設定セクションが空です")
		return false
	}
	v, ok := sec[flag].(bool)
	return ok && v
}

// JWTEnabled は CONFIGS.JWT.JWT_ENABLE を返す。
func JWTEnabled(s *store.Store) bool {
	return enabled(s, "JWT", flagJWT)
}

// CORSEnabled は CONFIGS.CORS.CORS_ENABLE を返す。
func CORSEnabled(s *store.Store) bool {
	return enabled(s, "CORS", flagCORS)
}

// DBEnabled は CONFIGS.DB.DB_ENABLE を返す。
func DBEnabled(s *store.Store) bool {
	return enabled(s, "DB", flagDB)
}

// APIEnabled は CONFIGS.API.API_ENABLE を返す。
func APIEnabled(s *store.Store) bool {
	return enabled(s, "API", flagAPI)
}

// APIEnabledFor はAPI機能が有効で、かつpathがAPIの接頭辞で始まるかを返す。
// "/apis" のように接頭辞の直後が区切りでないパスはAPIとみなさない。
func APIEnabledFor(s *store.Store, path string) bool {
	if !IsAPIPath(path) {
		return false
	}
	return APIEnabled(s)
}

// IsAPIPath はpathがAPIの接頭辞で始まるかを返す。
func IsAPIPath(path string) bool {
	return path == APIPrefix || strings.HasPrefix(path, APIPrefix+"/")
}
