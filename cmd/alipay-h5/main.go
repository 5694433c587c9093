package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "alipay-h5",
		Short:   "Alipay H5/App payment test server",
		Version: Version,
		// 不带子命令时直接启动服务器
		RunE: runServe,
	}
	addServeFlags(rootCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the payment test server",
		Long: `Start the payment test server.

Examples:
  alipay-h5 serve --port 8000
  alipay-h5 serve --config config.yaml --static ./web
  PAYMENT_PROVIDER=dummy alipay-h5 serve`,
		RunE: runServe,
	}
	addServeFlags(serveCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
