package server

import (
	"encoding/json"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-pay/gopay/pkg/xlog"
	"github.com/skip2/go-qrcode"
)

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

func contentTypeOf(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) handleIndex(c *gin.Context) {
	index := filepath.Join(s.staticDir, "index.html")
	if fi, err := os.Stat(index); err != nil || fi.IsDir() {
		xlog.Errorf("index.html not found in %s", s.staticDir)
		c.JSON(http.StatusNotFound, gin.H{"detail": "index.html not found"})
		return
	}
	c.Header("Content-Type", contentTypes[".html"])
	c.File(index)
}

// handleStatic 按请求路径返回静态目录下的文件
func (s *Server) handleStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	rel := strings.TrimPrefix(c.Request.URL.Path, "/")
	if strings.Contains(rel, "..") || strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		xlog.Warnf("static: rejected path %q", c.Request.URL.Path)
		c.JSON(http.StatusForbidden, gin.H{"detail": "Access denied"})
		return
	}

	full := filepath.Join(s.staticDir, filepath.FromSlash(rel))
	fi, err := os.Stat(full)
	if err != nil || fi.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	c.Header("Content-Type", contentTypeOf(full))
	c.File(full)
}

// handlePaymentResult 支付宝同步跳转页面，原样展示返回参数
func (s *Server) handlePaymentResult(c *gin.Context) {
	params := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	xlog.Infof("payment result page from %s, User-Agent: %s", c.ClientIP(), c.GetHeader("User-Agent"))
	if len(params) == 0 {
		xlog.Info("payment result: no query parameters")
	}
	for k, v := range params {
		xlog.Infof("  %s: %s", k, v)
	}

	pretty, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		pretty = []byte("{}")
	}
	page := "<html><body><pre>" + html.EscapeString(string(pretty)) + "</pre></body></html>"
	c.Data(http.StatusOK, contentTypes[".html"], []byte(page))
}

// handleQRCode 将支付链接生成二维码，便于手机扫码打开H5支付页
func (s *Server) handleQRCode(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		fail(c, http.StatusBadRequest, "text is required")
		return
	}
	size := 256
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			fail(c, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
