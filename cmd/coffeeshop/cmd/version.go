package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version はビルド時に -ldflags で設定される。
var Version = "dev"

// newVersionCmd はバージョンを表示するコマンドを生成する。
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "バージョンを表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "coffeeshop version %s\n", Version)
			return err
		},
	}
}
