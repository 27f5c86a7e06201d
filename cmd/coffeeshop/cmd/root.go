// Package cmd はcoffeeshopのCLIコマンドを実装する。
package cmd

import (
	"fmt"

	"github.com/nao1215/coffeeshop/internal/config"
	"github.com/spf13/cobra"
)

// newRootCmd はルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "coffeeshop",
		Short: "コーヒーショップのドリンクAPIサーバー",
		Long: `coffeeshopはドリンクの一覧・詳細・作成・更新・削除を提供するAPIサーバー。

一覧取得以外のエンドポイントは、発行者の鍵セットで検証したベアラートークンの
permissionsクレームに必要な権限が含まれている場合だけ実行できる。`,
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML設定ファイルのパス")

	loader := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("設定の読み込みに失敗: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(loader),
		newKeysCmd(loader),
		newVersionCmd(),
	)
	return root
}

// configLoader は--configと環境変数から設定を読み込む関数。
type configLoader func() (config.Config, error)

// Execute はルートコマンドを実行する。
func Execute() error {
	return newRootCmd().Execute()
}
