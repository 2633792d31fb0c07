package initialware

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
)

// DefaultConfigFile は設定ディレクトリからの相対パスで表したルート設定ファイル。
const DefaultConfigFile = "private/server_config.yaml"

// DefaultEnvPrefix は設定を上書きする環境変数の接頭辞。
const DefaultEnvPrefix = "FELIZ_"

// ImportGlobals はルート設定ファイルをCONFIGSに読み込むステージ。
// 環境変数 FELIZ_{SECTION}__{KEY} で値を上書きできる。
// API機能が有効な場合は CONFIGS.API.API_FILE をAPIに読み込む。
type ImportGlobals struct {
	// ConfigFile は設定ディレクトリからの相対パス。空の場合は DefaultConfigFile。
	ConfigFile string
	// EnvPrefix は環境変数の接頭辞。空の場合は DefaultEnvPrefix。"-" で上書きを無効にする。
	EnvPrefix string
}

// Process は設定を読み込む。読み込みに失敗しても起動は続ける。
func (g ImportGlobals) Process(_ context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}

	configFile := g.ConfigFile
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	path := ResolvePath(a.ConfigDir, configFile)

	configs, err := loadConfigs(path, g.envPrefix())
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Load Config File Error")
		return data, nil
	}
	if err := a.Store.Set(store.KeyConfigs, configs); err != nil {
		log.Warn().Err(err).Msg("Load Config File Error")
		return data, nil
	}

	if !inspector.APIEnabled(a.Store) {
		return data, nil
	}
	apiFile, _ := a.Store.Lookup(store.KeyConfigs+".API.API_FILE", "").(string)
	if env := a.Store.LoadYAML(store.KeyAPI, ResolvePath(a.ConfigDir, apiFile)); !env.Indicator {
		log.Warn().Str("path", apiFile).Msg("Load API Config File Error: " + env.Message)
	}
	return data, nil
}

func (g ImportGlobals) envPrefix() string {
	switch g.EnvPrefix {
	case "":
		return DefaultEnvPrefix
	case "-":
		return ""
	default:
		return g.EnvPrefix
	}
}

// loadConfigs はYAMLファイルを読み込み、環境変数で上書きしたマッピングを返す。
func loadConfigs(path, prefix string) (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, err
	}
	if prefix != "" {
		provider := env.ProviderWithValue(prefix, ".", func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.TrimPrefix(key, prefix), "__", ".")
			return key, coerceEnvValue(value)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, err
		}
	}
	return k.Raw(), nil
}

// coerceEnvValue は環境変数の値を整数・真偽値に変換する。どちらでもなければ文字列のまま返す。
func coerceEnvValue(v string) any {
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

// ResolvePath は相対パスを設定ディレクトリからのパスに変換する。
func ResolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
