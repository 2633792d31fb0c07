// Package dbhandler はデータベース接続ハンドラを提供する。
//
// 接続ハンドラは論理名（エイリアス）ごとに1つ生成され、設定ストアの
// DB.<種別>.<エイリアス> に登録される。リレーショナル（PostgreSQL, SQLite）には
// SQLHandler を、ドキュメントストア（MongoDB）には MongoHandler を使う。
package dbhandler
