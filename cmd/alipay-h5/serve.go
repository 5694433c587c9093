package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-pay/gopay/pkg/xlog"
	"github.com/spf13/cobra"

	payment "github.com/smart-unicom/alipay-h5"
	"github.com/smart-unicom/alipay-h5/internal/config"
	"github.com/smart-unicom/alipay-h5/internal/server"
)

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "YAML config file")
	cmd.Flags().IntP("port", "p", 0, "listen port (overrides PORT)")
	cmd.Flags().String("static", "", "static file directory (overrides STATIC_DIR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("static") {
		cfg.StaticDir, _ = cmd.Flags().GetString("static")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store := payment.NewConfigStore(cfg.ProviderFactory(), cfg.Alipay)
	if redacted, ok := store.Redacted(); ok {
		xlog.Infof("provider=%s app_id=%s gateway=%s", cfg.Provider, redacted.AppId, redacted.Gateway)
	} else {
		xlog.Warnf("provider=%s: no app_id configured, POST /api/config before creating orders", cfg.Provider)
	}
	verifier := payment.NewVerifier(store, cfg.VerifyOptions())

	srv := server.New(store, verifier, server.Options{
		StaticDir: cfg.StaticDir,
		Version:   Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, cfg.Addr())
}
