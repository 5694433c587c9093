// Package payment 支付相关功能
package payment

import (
	"fmt"
	"strings"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/pkg/xlog"
	"github.com/shopspring/decimal"
)

// priceToString 将金额格式化为支付宝要求的两位小数字符串
// 参数:
//   - price: 金额（元）
//
// 返回:
//   - string: 例如 "0.01"
func priceToString(price decimal.Decimal) string {
	return price.StringFixed(2)
}

// priceStringToDecimal 解析支付宝返回的金额字符串
// 参数:
//   - price: 金额字符串
//
// 返回:
//   - decimal.Decimal: 金额
//   - error: 错误信息
func priceStringToDecimal(price string) (decimal.Decimal, error) {
	if price == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", price, err)
	}
	return d, nil
}

// trimPemArmor 去掉PEM头尾与空白，只保留base64内容
// gopay 会自行补全PEM格式，传入带头尾的密钥会导致解析失败
func trimPemArmor(key string) string {
	var b strings.Builder
	for _, line := range strings.Split(key, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// isSandboxGateway 判断网关地址是否为支付宝沙箱环境
func isSandboxGateway(gateway string) bool {
	g := strings.ToLower(gateway)
	return strings.Contains(g, "alipaydev") || strings.Contains(g, "sandbox")
}

// maskSecret 隐藏密钥内容，仅保留首尾各4位用于日志
func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 8) + s[len(s)-4:]
}

// ParseNotifyResult 将异步通知参数转换为通知结果，不校验签名
// 金额无法解析时记为0并写入 NotifyMessage，通知仍然视为已接收
func ParseNotifyResult(params gopay.BodyMap) *NotifyResult {
	amount, amountErr := priceStringToDecimal(params.GetString("total_amount"))
	if amountErr != nil {
		xlog.Warnf("notify %s: %v", params.GetString("out_trade_no"), amountErr)
	}
	status := params.GetString("trade_status")
	result := &NotifyResult{
		OutTradeNo:    params.GetString("out_trade_no"),
		TradeNo:       params.GetString("trade_no"),
		TradeStatus:   status,
		TotalAmount:   amount,
		Subject:       params.GetString("subject"),
		PaymentStatus: paymentStateOf(status),
		Params:        params,
	}
	switch {
	case amountErr != nil:
		result.NotifyMessage = amountErr.Error()
	case result.PaymentStatus == PaymentStateError:
		result.NotifyMessage = fmt.Sprintf("unexpected alipay trade state: %v", status)
	}
	return result
}
