package server

import (
	"net/http"
	"time"

	"github.com/casdoor/casdoor/util"
	"github.com/gin-gonic/gin"
	"github.com/go-pay/gopay/pkg/xlog"
)

// corsMiddleware 允许任意来源跨域访问，测试页面可能部署在其他域名下
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if origin := c.GetHeader("Origin"); origin != "" {
			// 携带凭据时不能使用 *，回显请求来源
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		} else {
			h.Set("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if reqHeaders := c.GetHeader("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			} else {
				h.Set("Access-Control-Allow-Headers", "*")
			}
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger 每个请求输出一行: 方法 路径 - 状态码 - 耗时
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		xlog.Infof("%s %s - %d - %.3fs", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Seconds())
	}
}

func now() string {
	return util.GetCurrentTime()
}
