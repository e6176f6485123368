// Command launchboard はLaunchboard認証APIサーバーとCLIクライアントを起動する。
//
//	launchboard [serve]                 APIサーバーを起動する
//	launchboard migrate [up|down N|version]
//	launchboard healthcheck             Dockerヘルスチェック用
//	launchboard wallet-login            WALLET_PRIVATE_KEYでログインし、セッションを保存する
//	launchboard whoami                  保存済みセッションのユーザーを表示する
//	launchboard logout                  保存済みセッションを破棄する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/launchboard/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "launchboard: %v\n", err)
		os.Exit(1)
	}
}
