package initialware

import (
	"context"

	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/middleware"
	"github.com/rs/zerolog/log"
)

// CORSSetup はCORS機能が有効な場合にCORSミドルウェアを組み込むステージ。
// ルートより先に組み込む必要があるため、RegisterAPIs より前に置く。
type CORSSetup struct {
	// Settings は明示的な設定。nilの場合は CONFIGS.CORS.SETTINGS を使う。
	Settings *middleware.CORSSettings
}

// Process はCORSミドルウェアを組み込む。設定の読み込みに失敗した場合は警告を出して何もしない。
func (cs CORSSetup) Process(_ context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	if !inspector.CORSEnabled(a.Store) {
		return data, nil
	}

	var settings middleware.CORSSettings
	if cs.Settings != nil {
		settings = *cs.Settings
	} else {
		raw, _ := a.Store.Lookup("CONFIGS.CORS.SETTINGS", nil).(map[string]any)
		settings, err = middleware.DecodeCORSSettings(raw)
		if err != nil {
			log.Warn().Err(err).Msg("Load CORS Settings Error")
			return data, nil
		}
	}
	a.Engine.Use(middleware.CORS(settings))
	return data, nil
}
