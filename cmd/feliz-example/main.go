// felizのサンプルサーバーのエントリポイント。
// 利用者の登録とログインを行う users / auth APIを提供する。
package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
