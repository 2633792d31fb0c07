// Package fileutil はYAML/INIファイルの読み書きを提供する。
// すべての関数はエラーを返さず、結果を response.Envelope で表現する。
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/feliz/pkg/response"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ReadYAML はYAMLファイルを読み込み、contentにマッピングを格納したエンベロープを返す。
func ReadYAML(path string) response.Envelope {
	b, err := os.ReadFile(path)
	if err != nil {
		return response.False(err.Error(), nil)
	}

	content := map[string]any{}
	if err := yaml.Unmarshal(b, &content); err != nil {
		return response.False(err.Error(), nil)
	}
	return response.True("Load a yaml file successfully", content)
}

// WriteYAML はデータをYAMLとして書き出す。親ディレクトリがなければ作成する。
func WriteYAML(path string, data any) response.Envelope {
	b, err := yaml.Marshal(data)
	if err != nil {
		return response.False(err.Error(), nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return response.False(err.Error(), nil)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return response.False(err.Error(), nil)
	}
	return response.True("Write to yaml successful", nil)
}

// ReadINI はINIファイルを読み込み、contentに *ini.File を格納したエンベロープを返す。
func ReadINI(path string) response.Envelope {
	f, err := ini.Load(path)
	if err != nil {
		return response.False(fmt.Sprintf("INIファイルの読み込みに失敗: %v", err), nil)
	}
	return response.True("Load an ini file successfully", f)
}
