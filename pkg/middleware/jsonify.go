package middleware

import (
	"github.com/nao1215/feliz/pkg/response"
)

type jsonifyResponse struct{ Base }

// JsonifyResponse はハンドラがマップやエンベロープを返した場合に、
// アプリケーションのエンコーダでJSONに変換する。
func JsonifyResponse() Middleware {
	return jsonifyResponse{}
}

func (jsonifyResponse) ProcessResponse(c *Context, _ func()) error {
	res := c.Response
	if res == nil || res.Data != nil {
		return nil
	}
	switch res.Body.(type) {
	case map[string]any, response.Envelope:
	default:
		return nil
	}
	b, err := c.App.Encoder.Marshal(res.Body)
	if err != nil {
		return err
	}
	res.Data = b
	res.ContentType = jsonContentType
	return nil
}
