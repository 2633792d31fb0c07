package initialware

import (
	"context"

	"github.com/nao1215/feliz/pkg/response"
)

// JSONEncoding はレスポンスのJSONエンコーダに変換フックを設定するステージ。
// フックが変換しなかった値は標準の変換に任せる。
type JSONEncoding struct {
	// Hook は変換フック。nilの場合はフックを解除する。
	Hook response.JSONHook
}

// Process はフックを設定する。
func (j JSONEncoding) Process(_ context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	a.Encoder.SetHook(j.Hook)
	return data, nil
}
