// Package payment 支付相关功能
package payment

import (
	"fmt"
)

// 默认配置（沙箱环境）
const (
	DefaultGateway   = "https://openapi-sandbox.dl.alipaydev.com/gateway.do"
	DefaultNotifyUrl = "http://localhost:8000/api/alipay/notify"
	DefaultReturnUrl = "http://localhost:8000/payment/result"
)

// ProviderConfig 支付宝接入配置
type ProviderConfig struct {
	AppId           string `json:"app_id" mapstructure:"app_id"`                       // 应用ID
	PrivateKey      string `json:"private_key" mapstructure:"private_key"`             // 应用私钥
	AlipayPublicKey string `json:"alipay_public_key" mapstructure:"alipay_public_key"` // 支付宝公钥
	Gateway         string `json:"gateway" mapstructure:"gateway"`                     // 网关地址
	NotifyUrl       string `json:"notify_url" mapstructure:"notify_url"`               // 异步通知地址
	ReturnUrl       string `json:"return_url" mapstructure:"return_url"`               // 同步跳转地址
}

// RedactedConfig 对外展示的配置，不包含密钥内容
type RedactedConfig struct {
	AppId         string `json:"app_id"`
	Gateway       string `json:"gateway"`
	NotifyUrl     string `json:"notify_url"`
	ReturnUrl     string `json:"return_url"`
	HasPrivateKey bool   `json:"hasPrivateKey"`
	HasPublicKey  bool   `json:"hasPublicKey"`
}

// Validate 检查必填项
func (c ProviderConfig) Validate() error {
	if c.AppId == "" || c.PrivateKey == "" {
		return fmt.Errorf("%w: app_id and private_key are required", ErrInvalidConfig)
	}
	return nil
}

// WithDefaults 为空的网关和回调地址填充默认值
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.Gateway == "" {
		c.Gateway = DefaultGateway
	}
	if c.NotifyUrl == "" {
		c.NotifyUrl = DefaultNotifyUrl
	}
	if c.ReturnUrl == "" {
		c.ReturnUrl = DefaultReturnUrl
	}
	return c
}

// IsProd 根据网关地址判断是否为正式环境
func (c ProviderConfig) IsProd() bool {
	return !isSandboxGateway(c.Gateway)
}

// Redacted 返回脱敏后的配置
func (c ProviderConfig) Redacted() RedactedConfig {
	return RedactedConfig{
		AppId:         c.AppId,
		Gateway:       c.Gateway,
		NotifyUrl:     c.NotifyUrl,
		ReturnUrl:     c.ReturnUrl,
		HasPrivateKey: c.PrivateKey != "",
		HasPublicKey:  c.AlipayPublicKey != "",
	}
}

// String 日志输出时隐藏私钥
func (c ProviderConfig) String() string {
	return fmt.Sprintf("app_id=%s gateway=%s notify_url=%s return_url=%s private_key=%s",
		c.AppId, c.Gateway, c.NotifyUrl, c.ReturnUrl, maskSecret(trimPemArmor(c.PrivateKey)))
}
