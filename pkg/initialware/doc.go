// Package initialware は起動時に1度だけ実行する初期化パイプラインを提供する。
//
// System は登録順にステージを実行し、各ステージは Data を受け取って次のステージへ渡す。
// Data の "app" キーは予約されており、アプリケーションハンドルが格納される。
// 設定ファイルの読み込みに失敗したステージは警告を出して Data をそのまま返し、
// 起動を続ける。
package initialware
