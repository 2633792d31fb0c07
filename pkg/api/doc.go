// Package api はルートハンドラの登録を補助する。
//
// Group は /api/{name} 配下にまとめて登録するルートの集まりで、
// 各ハンドラはミドルウェアパイプラインが用意した入力や利用者情報を
// Params として受け取る。Registry はグループの生成関数を名前で引くための
// 明示的な登録簿で、initialware の RegisterAPIs が設定に挙がったAPIの
// グループを解決する際に使う。
package api
