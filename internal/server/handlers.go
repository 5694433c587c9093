package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/casdoor/casdoor/util"
	"github.com/gin-gonic/gin"
	"github.com/go-pay/gopay/alipay"
	"github.com/go-pay/gopay/pkg/xlog"
	"github.com/shopspring/decimal"

	payment "github.com/smart-unicom/alipay-h5"
)

type createOrderReq struct {
	Subject     string          `json:"subject"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OutTradeNo  string          `json:"out_trade_no"`
}

type verifyPaymentReq struct {
	OutTradeNo  string           `json:"out_trade_no"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

func (s *Server) handleCreateOrder(paymentType payment.PaymentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		payReq := &payment.PayReq{
			Subject:     req.Subject,
			TotalAmount: req.TotalAmount,
			OutTradeNo:  req.OutTradeNo,
			PaymentType: paymentType,
		}
		if err := payReq.Validate(); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		provider, err := s.store.Provider()
		if err != nil {
			xlog.Errorf("create order %s: %v", req.OutTradeNo, err)
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		xlog.Infof("create %s order: out_trade_no=%s subject=%s total_amount=%s",
			paymentType, req.OutTradeNo, req.Subject, req.TotalAmount.StringFixed(2))
		payResp, err := provider.Pay(c.Request.Context(), payReq)
		if err != nil {
			xlog.Errorf("create order %s failed: %v", req.OutTradeNo, err)
			fail(c, http.StatusInternalServerError, "create order failed: "+err.Error())
			return
		}
		xlog.Infof("order created: %s", req.OutTradeNo)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "order created",
			"data":    payResp,
		})
	}
}

// handleNotify 处理支付宝异步通知
// 返回非 success 时支付宝会按自身策略重试
func (s *Server) handleNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		xlog.Errorf("notify: read body: %v", err)
		c.String(http.StatusOK, "fail")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	xlog.Infof("alipay notify from %s, Content-Type: %s, User-Agent: %s",
		c.ClientIP(), c.ContentType(), c.GetHeader("User-Agent"))
	xlog.Infof("notify raw body: %s", body)

	params, err := alipay.ParseNotifyToBodyMap(c.Request)
	if err != nil {
		xlog.Errorf("notify: parse form: %v", err)
		c.String(http.StatusOK, "fail")
		return
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		xlog.Infof("  %s: %s", k, params.GetString(k))
	}

	var result *payment.NotifyResult
	provider, perr := s.store.Provider()
	if perr != nil {
		xlog.Warnf("notify: %v, signature not checked", perr)
		result = payment.ParseNotifyResult(params)
	} else {
		result, err = provider.Notify(c.Request.Context(), params)
	}
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSign) {
			xlog.Warnf("notify: signature check failed, possibly forged: %v", err)
		} else {
			xlog.Errorf("notify: %v", err)
		}
		c.String(http.StatusOK, "fail")
		return
	}
	xlog.Infof("notify summary: %s", util.StructToJson(result))

	switch result.TradeStatus {
	case payment.TradeStatusSuccess:
		xlog.Infof("payment succeeded: out_trade_no=%s trade_no=%s total_amount=%s",
			result.OutTradeNo, result.TradeNo, result.TotalAmount.StringFixed(2))
	case payment.TradeStatusFinished:
		xlog.Infof("trade finished: out_trade_no=%s trade_no=%s total_amount=%s",
			result.OutTradeNo, result.TradeNo, result.TotalAmount.StringFixed(2))
	default:
		xlog.Infof("trade status %s: out_trade_no=%s", result.TradeStatus, result.OutTradeNo)
	}

	ack := "success"
	if provider != nil {
		ack = provider.GetResponseError(nil)
	}
	c.String(http.StatusOK, ack)
}

func (s *Server) handleVerifyResponse(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	result := s.verifier.Verify(c.Request.Context(), body)
	if result.Success {
		xlog.Infof("verify response: %s verified", result.Data.OutTradeNo)
	} else {
		xlog.Warnf("verify response: %s %s", result.ErrorCode, result.Message)
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerifyPayment(c *gin.Context) {
	var req verifyPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, s.verifier.VerifyPayment(c.Request.Context(), req.OutTradeNo, req.TotalAmount))
}

func (s *Server) handleSaveConfig(c *gin.Context) {
	var cfg payment.ProviderConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	xlog.Infof("saving config for app_id: %s", cfg.AppId)
	if err := s.store.Update(cfg); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, payment.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		fail(c, status, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "config saved",
		"timestamp": now(),
	})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, ok := s.store.Redacted()
	if !ok {
		fail(c, http.StatusOK, "no config")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"config":    cfg,
		"timestamp": now(),
	})
}
