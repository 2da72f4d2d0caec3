package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は孤立画像のクリーンアップワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandWaitForDB はデータベースが応答するまで待機することを示す。
	CommandWaitForDB Command = "wait-for-db"
	// CommandCreateSuperuser は環境変数から管理者ユーザーを作成することを示す。
	CommandCreateSuperuser Command = "createsuperuser"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate,
		CommandWaitForDB, CommandCreateSuperuser, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
