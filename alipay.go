// Package payment 支付相关功能
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/alipay"
	"github.com/go-pay/gopay/pkg/xlog"
)

// AlipayOptions 支付宝客户端的可选项
type AlipayOptions struct {
	Debug          bool // 开启SDK调试日志
	SkipNotifySign bool // 跳过异步通知验签，仅用于联调
}

// AlipayPaymentProvider 支付宝支付提供商
type AlipayPaymentProvider struct {
	Client    *alipay.Client // 支付宝客户端
	publicKey string         // 支付宝公钥（base64）
	returnUrl string
	opts      AlipayOptions
}

// NewAlipayPaymentProvider 创建新的支付宝支付提供商实例
// 参数:
//   - cfg: 接入配置，私钥与公钥可以是PEM格式或纯base64
//   - opts: 可选项
//
// 返回:
//   - *AlipayPaymentProvider: 支付宝支付提供商实例
//   - error: 错误信息
func NewAlipayPaymentProvider(cfg ProviderConfig, opts AlipayOptions) (*AlipayPaymentProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	// 创建支付宝客户端
	client, err := alipay.NewClient(cfg.AppId, trimPemArmor(cfg.PrivateKey), cfg.IsProd())
	if err != nil {
		return nil, fmt.Errorf("alipay client: %w", err)
	}

	// 配置公共参数，回调地址随配置更新而整体替换，不在每次下单时修改
	client.SetLocation(alipay.LocationShanghai).
		SetCharset("utf-8").
		SetSignType(alipay.RSA2).
		SetReturnUrl(cfg.ReturnUrl).
		SetNotifyUrl(cfg.NotifyUrl)
	if opts.Debug {
		client.DebugSwitch = gopay.DebugOn
	}

	pp := &AlipayPaymentProvider{
		Client:    client,
		publicKey: trimPemArmor(cfg.AlipayPublicKey),
		returnUrl: cfg.ReturnUrl,
		opts:      opts,
	}
	return pp, nil
}

// Pay 执行支付宝支付操作
// 参数:
//   - ctx: 上下文
//   - r: 支付请求信息
//
// 返回:
//   - *PayResp: 支付响应信息
//   - error: 错误信息
func (pp *AlipayPaymentProvider) Pay(ctx context.Context, r *PayReq) (*PayResp, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	bm := gopay.BodyMap{}
	bm.Set("subject", r.Subject).
		Set("out_trade_no", r.OutTradeNo).
		Set("total_amount", priceToString(r.TotalAmount)).
		Set("product_code", r.PaymentType.ProductCode())

	payResp := &PayResp{
		OutTradeNo:  r.OutTradeNo,
		PaymentType: r.PaymentType,
	}
	switch r.PaymentType {
	case PaymentTypeApp:
		orderString, err := pp.Client.TradeAppPay(ctx, bm)
		if err != nil {
			return nil, err
		}
		payResp.OrderString = orderString
	case PaymentTypePage:
		payUrl, err := pp.Client.TradePagePay(ctx, bm)
		if err != nil {
			return nil, err
		}
		payResp.PayUrl = payUrl
	default:
		// 手机网站支付，用户中途退出时返回商户页面
		bm.Set("quit_url", pp.returnUrl)
		payUrl, err := pp.Client.TradeWapPay(ctx, bm)
		if err != nil {
			return nil, err
		}
		payResp.PaymentType = PaymentTypeH5
		payResp.PayUrl = payUrl
	}
	return payResp, nil
}

// Notify 校验支付宝异步通知签名并解析通知内容
// 参数:
//   - ctx: 上下文
//   - params: 通知参数
//
// 返回:
//   - *NotifyResult: 通知结果
//   - error: 签名不正确时为 ErrInvalidSign
func (pp *AlipayPaymentProvider) Notify(ctx context.Context, params gopay.BodyMap) (*NotifyResult, error) {
	switch {
	case pp.opts.SkipNotifySign:
		xlog.Warn("notify signature check disabled")
	case pp.publicKey == "":
		xlog.Warn("alipay public key not configured, notify signature not checked")
	default:
		// VerifySign 会删除 sign 与 sign_type，使用副本保留原始参数
		bm := make(gopay.BodyMap, len(params))
		for k, v := range params {
			bm[k] = v
		}
		xlog.Debugf("notify sign content: %s", signContent(params))
		ok, err := alipay.VerifySign(pp.publicKey, bm)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSign, err)
		}
		if !ok {
			return nil, ErrInvalidSign
		}
	}
	return ParseNotifyResult(params), nil
}

// Query 查询支付宝交易状态
// 参数:
//   - ctx: 上下文
//   - outTradeNo: 商户订单号
//
// 返回:
//   - *NotifyResult: 交易信息
//   - error: 交易不存在时为 ErrTradeNotExist
func (pp *AlipayPaymentProvider) Query(ctx context.Context, outTradeNo string) (*NotifyResult, error) {
	bm := gopay.BodyMap{}
	bm.Set("out_trade_no", outTradeNo)

	aliRsp, err := pp.Client.TradeQuery(ctx, bm)
	if err != nil {
		// 业务错误以JSON形式返回
		errRsp := &alipay.ErrorResponse{}
		if unmarshalErr := json.Unmarshal([]byte(err.Error()), errRsp); unmarshalErr != nil {
			return nil, err
		}
		if errRsp.SubCode == "ACQ.TRADE_NOT_EXIST" {
			return nil, fmt.Errorf("%w: %s", ErrTradeNotExist, outTradeNo)
		}
		return nil, fmt.Errorf("alipay trade query: %s %s", errRsp.SubCode, errRsp.SubMsg)
	}
	if aliRsp == nil || aliRsp.Response == nil {
		return nil, errors.New("alipay trade query: empty response")
	}

	amount, err := priceStringToDecimal(aliRsp.Response.TotalAmount)
	if err != nil {
		return nil, err
	}
	result := &NotifyResult{
		OutTradeNo:    aliRsp.Response.OutTradeNo,
		TradeNo:       aliRsp.Response.TradeNo,
		TradeStatus:   aliRsp.Response.TradeStatus,
		TotalAmount:   amount,
		Subject:       aliRsp.Response.Subject,
		PaymentStatus: paymentStateOf(aliRsp.Response.TradeStatus),
	}
	if result.PaymentStatus == PaymentStateError {
		result.NotifyMessage = fmt.Sprintf("unexpected alipay trade state: %v", aliRsp.Response.TradeStatus)
	}
	return result, nil
}

// VerifyAppPayResult 校验App支付同步返回结果的签名
// 待验签内容为 alipay_trade_app_pay_response 的原始JSON
func (pp *AlipayPaymentProvider) VerifyAppPayResult(r *AppPayResult) (bool, error) {
	if pp.publicKey == "" {
		return false, errors.New("alipay public key not configured")
	}
	if r.Sign == "" || r.SignData == "" {
		return false, nil
	}
	return alipay.VerifySyncSign(pp.publicKey, r.SignData, r.Sign)
}

// GetResponseError 获取支付宝异步通知的应答内容
// 支付宝在收到 success 之前会按自身策略重试通知
func (pp *AlipayPaymentProvider) GetResponseError(err error) string {
	if err == nil {
		return "success"
	}
	return "fail"
}

// signContent 按键名排序拼接非空参数，得到待验签字符串
// sign 与 sign_type 不参与拼接
func signContent(params gopay.BodyMap) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := params.GetString(k); v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	return strings.Join(pairs, "&")
}
