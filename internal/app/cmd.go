package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/sponsorlink/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの一括削除ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はサブコマンドを登録したルートコマンドを返す。
// サブコマンドを省略した場合はserveとして動作する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	// withConfig は設定とログを初期化してからモード本体を実行する。
	withConfig := func(cmd Command, run func(*config.Config) error) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			slog.Info("starting application",
				slog.String("command", string(cmd)),
				slog.String("port", cfg.ServerPort),
			)
			return run(cfg)
		}
	}

	root := &cobra.Command{
		Use:           "sponsorlink",
		Short:         "Sponsorship marketplace API",
		Long:          `学生団体と企業をつなぐ協賛申請・チャットAPIサーバー。環境変数で設定する。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withConfig(CommandServe, runServe),
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "APIサーバーを起動する",
			Args:  cobra.NoArgs,
			RunE:  withConfig(CommandServe, runServe),
		},
		&cobra.Command{
			Use:   string(CommandWorker),
			Short: "期限切れセッションの一括削除を定期実行する",
			Args:  cobra.NoArgs,
			RunE:  withConfig(CommandWorker, runWorker),
		},
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "未適用のデータベースマイグレーションを適用する",
			Args:  cobra.NoArgs,
			RunE:  withConfig(CommandMigrate, runMigrate),
		},
		&cobra.Command{
			Use:   string(CommandHealthcheck),
			Short: "起動中のAPIサーバーの/healthを確認する",
			Args:  cobra.NoArgs,
			// 軽量サブコマンドのため、フル初期化をスキップする
			RunE: func(*cobra.Command, []string) error {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = "8080"
				}
				return runHealthcheck(port)
			},
		},
	)

	return root
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}
