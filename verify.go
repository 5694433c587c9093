// Package payment 支付相关功能
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-pay/gopay/pkg/xlog"
	"github.com/shopspring/decimal"
)

// 校验失败的错误码
const (
	ErrCodeNoResponseData      = "NO_RESPONSE_DATA"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeInvalidResponseCode = "INVALID_RESPONSE_CODE"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeQueryFailed         = "QUERY_FAILED"
	ErrCodeTradeNotSuccess     = "TRADE_NOT_SUCCESS"
	ErrCodeAmountMismatch      = "AMOUNT_MISMATCH"
)

// ResponseCodeSuccess 支付宝接口成功码
const ResponseCodeSuccess = "10000"

const appPayResponseKey = "alipay_trade_app_pay_response"

var errNoResponseData = errors.New("no alipay_trade_app_pay_response in payload")

// AppPayResult App支付同步返回结果的规范形式
type AppPayResult struct {
	ResultStatus string `json:"resultStatus,omitempty"`
	Memo         string `json:"memo,omitempty"`

	Code        string `json:"code"`
	Msg         string `json:"msg"`
	SubCode     string `json:"sub_code,omitempty"`
	SubMsg      string `json:"sub_msg,omitempty"`
	AppId       string `json:"app_id,omitempty"`
	OutTradeNo  string `json:"out_trade_no"`
	TradeNo     string `json:"trade_no"`
	TotalAmount string `json:"total_amount"`
	SellerId    string `json:"seller_id,omitempty"`
	Charset     string `json:"charset,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`

	Sign     string `json:"sign,omitempty"`
	SignType string `json:"sign_type,omitempty"`
	SignData string `json:"-"` // 待验签的原始JSON
}

// VerifiedTrade 校验通过的交易信息
type VerifiedTrade struct {
	OutTradeNo  string `json:"out_trade_no"`
	TradeNo     string `json:"trade_no,omitempty"`
	TotalAmount string `json:"total_amount,omitempty"`
	TradeStatus string `json:"trade_status,omitempty"`
}

// VerificationResult 校验结果，直接作为HTTP响应返回
type VerificationResult struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	ErrorCode string         `json:"error_code,omitempty"`
	Data      *VerifiedTrade `json:"data,omitempty"`
}

func verifyFailed(code, format string, args ...any) *VerificationResult {
	return &VerificationResult{
		Success:   false,
		Message:   fmt.Sprintf(format, args...),
		ErrorCode: code,
	}
}

// flexString 兼容字符串与数字两种JSON写法
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type appPayResponse struct {
	Code        flexString `json:"code"`
	Msg         flexString `json:"msg"`
	SubCode     flexString `json:"sub_code"`
	SubMsg      flexString `json:"sub_msg"`
	AppId       flexString `json:"app_id"`
	OutTradeNo  flexString `json:"out_trade_no"`
	TradeNo     flexString `json:"trade_no"`
	TotalAmount flexString `json:"total_amount"`
	SellerId    flexString `json:"seller_id"`
	Charset     flexString `json:"charset"`
	Timestamp   flexString `json:"timestamp"`
}

// ParseAppPayResult 将客户端提交的支付结果归一化
// 支持三种形式:
//   - result 为JSON对象: {"resultStatus":"9000","result":{"alipay_trade_app_pay_response":{...},"sign":"..."}}
//   - result 为JSON字符串（可能经过URL编码）
//   - 直接提交解析后的字段: {"alipay_trade_app_pay_response":{...},"sign":"..."} 或顶层的 code、out_trade_no 等字段
func ParseAppPayResult(body []byte) (*AppPayResult, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoResponseData, err)
	}

	r := &AppPayResult{
		ResultStatus: rawString(top["resultStatus"]),
		Memo:         rawString(top["memo"]),
	}

	fields := top
	if raw, ok := top["result"]; ok {
		obj, err := decodeResultField(raw)
		if err != nil {
			return r, err
		}
		fields = obj
	}

	var resp appPayResponse
	if raw, ok := fields[appPayResponseKey]; ok && isJSONObject(raw) {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return r, fmt.Errorf("%w: %v", errNoResponseData, err)
		}
		r.SignData = string(bytes.TrimSpace(raw))
	} else if _, hasCode := fields["code"]; hasCode || fields["out_trade_no"] != nil {
		flat, err := json.Marshal(fields)
		if err != nil {
			return r, err
		}
		if err := json.Unmarshal(flat, &resp); err != nil {
			return r, fmt.Errorf("%w: %v", errNoResponseData, err)
		}
	} else {
		return r, errNoResponseData
	}

	r.Code = string(resp.Code)
	r.Msg = string(resp.Msg)
	r.SubCode = string(resp.SubCode)
	r.SubMsg = string(resp.SubMsg)
	r.AppId = string(resp.AppId)
	r.OutTradeNo = string(resp.OutTradeNo)
	r.TradeNo = string(resp.TradeNo)
	r.TotalAmount = string(resp.TotalAmount)
	r.SellerId = string(resp.SellerId)
	r.Charset = string(resp.Charset)
	r.Timestamp = string(resp.Timestamp)
	r.Sign = rawString(fields["sign"])
	r.SignType = rawString(fields["sign_type"])
	return r, nil
}

// decodeResultField 解析 result 字段，空值返回 errNoResponseData
func decodeResultField(raw json.RawMessage) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errNoResponseData
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", errNoResponseData, err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, errNoResponseData
		}
		if !strings.HasPrefix(s, "{") {
			unescaped, err := url.QueryUnescape(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errNoResponseData, err)
			}
			s = strings.TrimSpace(unescaped)
		}
		raw = json.RawMessage(s)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoResponseData, err)
	}
	if len(obj) == 0 {
		return nil, errNoResponseData
	}
	return obj, nil
}

func rawString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return string(s)
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// ProviderSource 提供当前可用的支付提供商，ConfigStore 实现了该接口
type ProviderSource interface {
	Provider() (PaymentProvider, error)
}

// VerifyOptions 校验选项
type VerifyOptions struct {
	VerifySign bool // 校验同步返回结果的签名
	QueryTrade bool // 向支付宝查询交易进行二次确认
}

// Verifier 校验客户端提交的支付结果
type Verifier struct {
	source ProviderSource
	opts   VerifyOptions
}

// NewVerifier 创建校验器
func NewVerifier(source ProviderSource, opts VerifyOptions) *Verifier {
	return &Verifier{source: source, opts: opts}
}

// Verify 校验客户端提交的App支付结果
// 参数:
//   - ctx: 上下文
//   - body: 客户端提交的原始JSON
//
// 返回:
//   - *VerificationResult: 校验结果
func (v *Verifier) Verify(ctx context.Context, body []byte) *VerificationResult {
	r, err := ParseAppPayResult(body)
	if err != nil {
		status := ""
		if r != nil {
			status = r.ResultStatus
		}
		xlog.Warnf("verify response: no response data (resultStatus=%s): %v", status, err)
		return verifyFailed(ErrCodeNoResponseData, "no payment response data (resultStatus=%s)", status)
	}

	if r.Code == "" {
		return verifyFailed(ErrCodeMissingField, "missing field: code")
	}
	if r.Code != ResponseCodeSuccess {
		return verifyFailed(ErrCodeInvalidResponseCode, "unexpected response code %s: %s %s", r.Code, r.Msg, r.SubMsg)
	}
	for _, f := range []struct{ name, value string }{
		{"out_trade_no", r.OutTradeNo},
		{"trade_no", r.TradeNo},
		{"total_amount", r.TotalAmount},
	} {
		if f.value == "" {
			return verifyFailed(ErrCodeMissingField, "missing field: %s", f.name)
		}
	}
	amount, err := priceStringToDecimal(r.TotalAmount)
	if err != nil {
		return verifyFailed(ErrCodeMissingField, "invalid field total_amount: %s", r.TotalAmount)
	}

	if v.opts.VerifySign {
		provider, err := v.source.Provider()
		if err != nil {
			return verifyFailed(ErrCodeInvalidSignature, "signature not verified: %v", err)
		}
		ok, err := provider.VerifyAppPayResult(r)
		if err != nil || !ok {
			xlog.Warnf("verify response: signature check failed for %s: %v", r.OutTradeNo, err)
			return verifyFailed(ErrCodeInvalidSignature, "signature verification failed")
		}
	}

	trade := &VerifiedTrade{
		OutTradeNo:  r.OutTradeNo,
		TradeNo:     r.TradeNo,
		TotalAmount: r.TotalAmount,
	}
	if !v.opts.QueryTrade {
		return &VerificationResult{Success: true, Message: "payment response verified", Data: trade}
	}
	return v.confirm(ctx, r.OutTradeNo, &amount)
}

// VerifyPayment 按商户订单号向支付宝查询交易，金额为空时不比较金额
func (v *Verifier) VerifyPayment(ctx context.Context, outTradeNo string, amount *decimal.Decimal) *VerificationResult {
	if outTradeNo == "" {
		return verifyFailed(ErrCodeMissingField, "missing field: out_trade_no")
	}
	return v.confirm(ctx, outTradeNo, amount)
}

func (v *Verifier) confirm(ctx context.Context, outTradeNo string, amount *decimal.Decimal) *VerificationResult {
	provider, err := v.source.Provider()
	if err != nil {
		return verifyFailed(ErrCodeQueryFailed, "trade query failed: %v", err)
	}
	trade, err := provider.Query(ctx, outTradeNo)
	if err != nil {
		xlog.Warnf("verify: trade query for %s failed: %v", outTradeNo, err)
		return verifyFailed(ErrCodeQueryFailed, "trade query failed: %v", err)
	}
	if trade.PaymentStatus != PaymentStatePaid {
		return verifyFailed(ErrCodeTradeNotSuccess, "trade %s status is %s", outTradeNo, trade.TradeStatus)
	}
	if amount != nil && !amount.Equal(trade.TotalAmount) {
		return verifyFailed(ErrCodeAmountMismatch, "amount mismatch: expected %s, got %s",
			priceToString(*amount), priceToString(trade.TotalAmount))
	}
	return &VerificationResult{
		Success: true,
		Message: "payment verified",
		Data: &VerifiedTrade{
			OutTradeNo:  outTradeNo,
			TradeNo:     trade.TradeNo,
			TotalAmount: priceToString(trade.TotalAmount),
			TradeStatus: trade.TradeStatus,
		},
	}
}
