// Package payment 支付相关功能
package payment

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/go-pay/gopay"
	"github.com/google/uuid"
)

// DummyPaymentProvider 虚拟支付提供商
// 用于没有支付宝凭据的本地联调和测试，下单即视为支付成功
type DummyPaymentProvider struct {
	returnUrl string

	mu     sync.Mutex
	trades map[string]*NotifyResult
}

// NewDummyPaymentProvider 创建新的虚拟支付提供商实例
// 参数:
//   - cfg: 接入配置，仅使用其中的 ReturnUrl
//
// 返回:
//   - *DummyPaymentProvider: 虚拟支付提供商实例
//   - error: 错误信息
func NewDummyPaymentProvider(cfg ProviderConfig) (*DummyPaymentProvider, error) {
	pp := &DummyPaymentProvider{
		returnUrl: cfg.WithDefaults().ReturnUrl,
		trades:    map[string]*NotifyResult{},
	}
	return pp, nil
}

// Pay 执行虚拟支付操作
// 记录订单并直接返回跳转到同步返回地址的链接
func (pp *DummyPaymentProvider) Pay(ctx context.Context, r *PayReq) (*PayResp, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	tradeNo := uuid.NewString()

	pp.mu.Lock()
	pp.trades[r.OutTradeNo] = &NotifyResult{
		OutTradeNo:    r.OutTradeNo,
		TradeNo:       tradeNo,
		TradeStatus:   TradeStatusSuccess,
		TotalAmount:   r.TotalAmount,
		Subject:       r.Subject,
		PaymentStatus: PaymentStatePaid,
	}
	pp.mu.Unlock()

	q := url.Values{}
	q.Set("out_trade_no", r.OutTradeNo)
	q.Set("trade_no", tradeNo)
	q.Set("total_amount", priceToString(r.TotalAmount))

	payResp := &PayResp{
		OutTradeNo:  r.OutTradeNo,
		PaymentType: r.PaymentType,
	}
	if r.PaymentType == PaymentTypeApp {
		payResp.OrderString = q.Encode()
	} else {
		payResp.PayUrl = pp.returnUrl + "?" + q.Encode()
	}
	return payResp, nil
}

// Notify 处理虚拟支付通知，不校验签名
func (pp *DummyPaymentProvider) Notify(ctx context.Context, params gopay.BodyMap) (*NotifyResult, error) {
	return ParseNotifyResult(params), nil
}

// Query 查询通过 Pay 创建的订单
func (pp *DummyPaymentProvider) Query(ctx context.Context, outTradeNo string) (*NotifyResult, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	trade, ok := pp.trades[outTradeNo]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotExist, outTradeNo)
	}
	result := *trade
	return &result, nil
}

// VerifyAppPayResult 虚拟支付不校验签名
func (pp *DummyPaymentProvider) VerifyAppPayResult(r *AppPayResult) (bool, error) {
	return true, nil
}

// GetResponseError 与支付宝一致的应答内容
func (pp *DummyPaymentProvider) GetResponseError(err error) string {
	if err == nil {
		return "success"
	}
	return "fail"
}
