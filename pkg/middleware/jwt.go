package middleware

import (
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/response"
)

// jwtVerification はJWT機能が有効で、ルートが認証を要求する場合にBearerトークンを検証する。
// 検証に成功するとクレームをコンテキストに設定する。失敗時の *jwtauth.TokenError は
// JWT設定時に登録したメッセージを持つ失敗エンベロープとしてクライアントに返る。
type jwtVerification struct{ Base }

func (jwtVerification) ProcessRequest(c *Context, _ func()) error {
	if !inspector.JWTEnabled(c.Store()) || c.Route == nil || !c.Route.Authentication {
		return nil
	}
	if c.App.JWT == nil {
		return response.NewDevelopmentError("JWTが有効ですが、JWTの初期化が実行されていません")
	}
	claims, err := c.App.JWT.VerifyRequest(c.Request())
	if err != nil {
		return err
	}
	c.Claims = claims
	return nil
}
