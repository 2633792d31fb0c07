// Package middleware はリクエストごとに実行するミドルウェアパイプラインを提供する。
//
// System は登録順にステージを実行する。先頭には常に組み込みステージ
// （グローバル注入、入力解析、JWT検証）が置かれ、利用者が Use で追加した
// ステージ（利用者チェック、入力キー・型の検証、レスポンスのJSON化など）が続く。
// 各ステージは stop を呼ぶことで、そのパスの以降のステージを打ち切れる。
//
// このほか、パイプラインの外側に置くGinミドルウェアとして
// CORS、パニックリカバリ、リクエストIDとアクセスログを提供する。
package middleware
