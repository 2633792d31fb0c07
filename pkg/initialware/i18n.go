package initialware

import (
	"context"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// DefaultI18NFile は設定ディレクトリからの相対パスで表した翻訳ファイル。
const DefaultI18NFile = "public/i18n.json"

// ImportI18N は翻訳ファイルを CONFIGS.I18N に読み込むステージ。
// ファイルは {"key": {"en": "...", "ja": "..."}} の形式で、
// 読み込めない場合は空のマッピングを設定する。
type ImportI18N struct {
	// File は翻訳ファイルのパス。相対パスは設定ディレクトリから解決する。
	File string
}

// Process は翻訳ファイルを読み込む。
func (i ImportI18N) Process(_ context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	path := i.File
	if path == "" {
		path = DefaultI18NFile
	}
	path = ResolvePath(a.ConfigDir, path)

	table := map[string]any{}
	if b, err := os.ReadFile(path); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("翻訳ファイルを読み込めません")
	} else if err := json.Unmarshal(b, &table); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("翻訳ファイルの形式が不正です")
		table = map[string]any{}
	}

	if err := a.Store.SetConfig("I18N", table); err != nil {
		log.Warn().Err(err).Msg("翻訳データの設定に失敗")
	}
	return data, nil
}
