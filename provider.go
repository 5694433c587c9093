// Package payment 支付宝H5/App支付测试工具的支付层
// 提供支付提供商的统一接口，包括支付宝（gopay）和离线的虚拟实现
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-pay/gopay"
	"github.com/shopspring/decimal"
)

// PaymentState 支付状态类型
type PaymentState string

// 支付状态常量定义
const (
	PaymentStatePaid     PaymentState = "Paid"     // 已支付
	PaymentStateCreated  PaymentState = "Created"  // 已创建
	PaymentStateCanceled PaymentState = "Canceled" // 已取消
	PaymentStateTimeout  PaymentState = "Timeout"  // 超时
	PaymentStateError    PaymentState = "Error"    // 错误
)

// 支付宝交易状态
const (
	TradeStatusWaitBuyerPay = "WAIT_BUYER_PAY"
	TradeStatusClosed       = "TRADE_CLOSED"
	TradeStatusSuccess      = "TRADE_SUCCESS"
	TradeStatusFinished     = "TRADE_FINISHED"
)

// PaymentType 支付方式
type PaymentType string

// 支付方式常量定义
const (
	PaymentTypeH5   PaymentType = "h5"   // 手机网站支付
	PaymentTypeApp  PaymentType = "app"  // App支付
	PaymentTypePage PaymentType = "page" // 电脑网站支付
)

// ProductCode 返回支付方式对应的支付宝产品码
func (t PaymentType) ProductCode() string {
	switch t {
	case PaymentTypeApp:
		return "QUICK_MSECURITY_PAY"
	case PaymentTypePage:
		return "FAST_INSTANT_TRADE_PAY"
	default:
		return "QUICK_WAP_WAY"
	}
}

var (
	ErrProviderNotReady = errors.New("payment provider is not initialized")
	ErrTradeNotExist    = errors.New("trade does not exist")
	ErrInvalidSign      = errors.New("signature verification failed")
	ErrInvalidConfig    = errors.New("invalid provider config")
	ErrInvalidPayReq    = errors.New("invalid payment request")
)

// PayReq 支付请求结构体
type PayReq struct {
	Subject     string          // 订单标题
	TotalAmount decimal.Decimal // 订单金额（元）
	OutTradeNo  string          // 商户订单号
	PaymentType PaymentType     // 支付方式
}

// Validate 检查支付请求的必填参数
func (r *PayReq) Validate() error {
	if r.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidPayReq)
	}
	if !r.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: total_amount must be positive", ErrInvalidPayReq)
	}
	// 支付宝金额精确到分，多余的小数位不做舍入
	if !r.TotalAmount.Equal(r.TotalAmount.Truncate(2)) {
		return fmt.Errorf("%w: total_amount must have at most 2 decimal places", ErrInvalidPayReq)
	}
	if r.OutTradeNo == "" {
		return fmt.Errorf("%w: out_trade_no is required", ErrInvalidPayReq)
	}
	return nil
}

// PayResp 支付响应结构体
// H5与电脑网站支付返回PayUrl，App支付返回OrderString
type PayResp struct {
	OutTradeNo  string      `json:"out_trade_no"`
	PayUrl      string      `json:"pay_url,omitempty"`
	OrderString string      `json:"order_string,omitempty"`
	PaymentType PaymentType `json:"payment_type"`
}

// NotifyResult 支付通知或交易查询的结果
type NotifyResult struct {
	OutTradeNo    string          `json:"out_trade_no"`
	TradeNo       string          `json:"trade_no"`
	TradeStatus   string          `json:"trade_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Subject       string          `json:"subject,omitempty"`
	PaymentStatus PaymentState    `json:"payment_status"`
	NotifyMessage string          `json:"notify_message,omitempty"`

	Params gopay.BodyMap `json:"-"` // 通知原始参数
}

// PaymentProvider 支付提供商接口
type PaymentProvider interface {
	// Pay 创建支付订单，返回支付链接或App订单串
	Pay(ctx context.Context, req *PayReq) (*PayResp, error)

	// Notify 校验并解析异步通知参数
	// 签名不正确时返回 ErrInvalidSign
	Notify(ctx context.Context, params gopay.BodyMap) (*NotifyResult, error)

	// Query 按商户订单号查询交易
	// 交易不存在时返回 ErrTradeNotExist
	Query(ctx context.Context, outTradeNo string) (*NotifyResult, error)

	// VerifyAppPayResult 校验App支付同步返回结果的签名
	VerifyAppPayResult(r *AppPayResult) (bool, error)

	// GetResponseError 根据处理结果返回给支付平台的应答内容
	GetResponseError(err error) string
}

// paymentStateOf 将支付宝交易状态转换为支付状态
func paymentStateOf(tradeStatus string) PaymentState {
	switch tradeStatus {
	case TradeStatusSuccess, TradeStatusFinished:
		return PaymentStatePaid
	case TradeStatusWaitBuyerPay:
		return PaymentStateCreated
	case TradeStatusClosed:
		return PaymentStateTimeout
	default:
		return PaymentStateError
	}
}
