// Package server 支付宝H5支付测试服务器的HTTP接口
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-pay/gopay/pkg/xlog"

	payment "github.com/smart-unicom/alipay-h5"
)

// Options 服务器选项
type Options struct {
	StaticDir string // 静态文件目录
	Version   string // /health 返回的版本号
}

// Server HTTP服务器
type Server struct {
	store     *payment.ConfigStore
	verifier  *payment.Verifier
	router    *gin.Engine
	staticDir string
	version   string
}

// New 创建服务器并注册路由
func New(store *payment.ConfigStore, verifier *payment.Verifier, opts Options) *Server {
	if opts.StaticDir == "" {
		opts.StaticDir = "."
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware(), requestLogger())

	s := &Server{
		store:     store,
		verifier:  verifier,
		router:    router,
		staticDir: opts.StaticDir,
		version:   opts.Version,
	}

	router.GET("/", s.handleIndex)
	router.GET("/health", s.handleHealth)
	router.GET("/payment/result", s.handlePaymentResult)

	api := router.Group("/api")
	{
		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handleSaveConfig)

		ali := api.Group("/alipay")
		ali.POST("/create_order", s.handleCreateOrder(payment.PaymentTypeH5))
		ali.POST("/create_app_order", s.handleCreateOrder(payment.PaymentTypeApp))
		ali.POST("/create_page_order", s.handleCreateOrder(payment.PaymentTypePage))
		ali.POST("/notify", s.handleNotify)
		ali.POST("/verify_response", s.handleVerifyResponse)
		ali.POST("/verify_payment", s.handleVerifyPayment)
		ali.GET("/qrcode", s.handleQRCode)
	}

	// 其余GET请求按路径读取静态文件
	router.NoRoute(s.handleStatic)

	return s
}

// Handler 返回 http.Handler，便于测试
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		xlog.Infof("starting server at http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	xlog.Info("server shutdown complete")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": now(),
		"version":   s.version,
	})
}
