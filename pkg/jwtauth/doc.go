// Package jwtauth はアクセストークンの発行と検証を提供する。
//
// 検証失敗は4種類（未提示・不正・失効・期限切れ）に分類され、
// それぞれ設定可能なメッセージを持つ TokenError として返される。
// TokenError は response.Enveloper を実装しているため、そのまま
// 失敗エンベロープとしてクライアントに返せる。
package jwtauth
