package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandWalletLogin はローカル秘密鍵でウォレットログインし、セッションファイルを保存する。
	CommandWalletLogin Command = "wallet-login"
	// CommandWhoami は保存済みセッションでログイン中のユーザーを表示する。
	CommandWhoami Command = "whoami"
	// CommandLogout は保存済みセッションを破棄する。
	CommandLogout Command = "logout"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "wallet-login":
		return CommandWalletLogin
	case "whoami":
		return CommandWhoami
	case "logout":
		return CommandLogout
	default:
		return CommandServe
	}
}

// isClientCommand はサーバー設定を必要としないCLIクライアント用コマンドかを返す。
func isClientCommand(cmd Command) bool {
	switch cmd {
	case CommandWalletLogin, CommandWhoami, CommandLogout:
		return true
	default:
		return false
	}
}
