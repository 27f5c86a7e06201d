package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/coffeeshop/pkg/jwks"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newKeysCmd は発行者の鍵セットを取得して表示するコマンドを生成する。
func newKeysCmd(load configLoader) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "発行者の鍵セットを取得して表示する",
		Long: `AUTH0_DOMAIN（または設定ファイルのauth.domain）の
/.well-known/jwks.json を取得し、鍵の一覧を表示する。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Auth.Domain == "" {
				return errors.New("発行者のドメインが設定されていない")
			}

			fetcher := jwks.NewFetcher(cfg.Auth.Domain, jwks.WithFetchTimeout(cfg.Auth.FetchTimeout))
			return printKeys(cmd.Context(), cmd.OutOrStdout(), fetcher, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "出力形式: json, yaml")
	return cmd
}

// printKeys はsrcから鍵セットを取得し、指定した形式でwに書き出す。
func printKeys(ctx context.Context, w io.Writer, src jwks.Source, format string) error {
	if format != "json" && format != "yaml" {
		return fmt.Errorf("未対応の出力形式: %s", format)
	}

	set, err := src.Fetch(ctx)
	if err != nil {
		return err
	}

	switch format {
	case "yaml":
		out, err := yaml.Marshal(set)
		if err != nil {
			return fmt.Errorf("YAMLへの変換に失敗: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(set)
	}
}
