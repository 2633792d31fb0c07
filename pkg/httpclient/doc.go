// Package httpclient はfelizサーバーのAPIを呼び出すクライアントを提供する。
//
// サーバーは常にHTTP 200でエンベロープを返すため、
// 成否はステータスコードではなく Indicator で判定する。
package httpclient
