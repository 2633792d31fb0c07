// Package account は利用者の登録とログインを行うAPIグループを提供する。
//
// users と auth の2つのAPIを持ち、init で api.DefaultRegistry に登録する。
// 利用者はpostgres種別の接続 "main" の users テーブルに保存する。
package account
