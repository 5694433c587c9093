package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smart-unicom/alipay-h5/internal/probe"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run integration checks against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("base-url")
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			results := probe.New(baseURL).Run(ctx)
			passed := probe.Report(os.Stdout, results)
			if passed != len(results) {
				return fmt.Errorf("%d of %d checks failed", len(results)-passed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().String("base-url", "http://localhost:8000", "server address")
	return cmd
}
