package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/jusmemoriza/internal/config"
	"github.com/hitoshi/jusmemoriza/internal/model"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（通知アウトボックスとクリーンアップ）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandImport はCSVインポートをコマンドラインから実行することを示す。
	CommandImport Command = "import"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はjusmemorizaのルートコマンドを構築する。
// サブコマンドなしで実行した場合はAPIサーバーを起動する。
// wはログの出力先。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "jusmemoriza",
		Short:         "法律学習サービス JusMemoriza",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(w, CommandServe, runServe)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "APIサーバーを起動する",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandServe, runServe)
			},
		},
		&cobra.Command{
			Use:   string(CommandWorker),
			Short: "通知アウトボックスとクリーンアップジョブを起動する",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandWorker, runWorker)
			},
		},
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "未適用のマイグレーションをすべて適用する",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandMigrate, runMigrate)
			},
		},
		newImportCommand(w),
		&cobra.Command{
			Use:   string(CommandHealthcheck),
			Short: "ローカルの /health を確認する",
			Args:  cobra.NoArgs,
			// 軽量サブコマンドのためフル初期化をスキップする
			RunE: func(cmd *cobra.Command, args []string) error {
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

// newImportCommand は `import --kind flashcards|quizzes FILE` を構築する。
func newImportCommand(w io.Writer) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   string(CommandImport) + " FILE",
		Short: "フラッシュカードまたはクイズのCSVをインポートする",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(kindFlag)
			if err != nil {
				return fmt.Errorf("--kind must be %s or %s: %w", model.KindFlashcards, model.KindQuizzes, err)
			}
			path := args[0]
			out := cmd.OutOrStdout()
			return runWithConfig(w, CommandImport, func(cfg *config.Config) error {
				return runImport(cfg, kind, path, out)
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "インポート種別（flashcards または quizzes）")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}
