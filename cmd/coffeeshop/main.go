// coffeeshopサーバーのエントリポイント。
// ドリンクAPIを提供し、保護されたエンドポイントをベアラートークンで認可する。
package main

import (
	"os"

	"github.com/nao1215/coffeeshop/cmd/coffeeshop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
