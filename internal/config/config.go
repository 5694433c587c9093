// Package config 加载服务配置
// 优先级: 环境变量 > 配置文件 > 默认值，启动时会先尝试加载当前目录下的 .env
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	payment "github.com/smart-unicom/alipay-h5"
)

// 支付提供商名称
const (
	ProviderAlipay = "alipay"
	ProviderDummy  = "dummy"
)

// Config 服务配置
type Config struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
	Provider  string `mapstructure:"provider"`
	Debug     bool   `mapstructure:"debug"`

	Alipay payment.ProviderConfig `mapstructure:"alipay"`
	Verify VerifyConfig           `mapstructure:"verify"`
}

// VerifyConfig 支付结果校验相关配置
type VerifyConfig struct {
	Sign       bool `mapstructure:"sign"`
	Query      bool `mapstructure:"query"`
	NotifySign bool `mapstructure:"notify_sign"`
}

// Addr 返回监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// VerifyOptions 转换为校验器选项
func (c *Config) VerifyOptions() payment.VerifyOptions {
	return payment.VerifyOptions{
		VerifySign: c.Verify.Sign,
		QueryTrade: c.Verify.Query,
	}
}

var envBindings = map[string]string{
	"port":                     "PORT",
	"static_dir":               "STATIC_DIR",
	"provider":                 "PAYMENT_PROVIDER",
	"debug":                    "ALIPAY_DEBUG",
	"alipay.app_id":            "ALIPAY_APP_ID",
	"alipay.private_key":       "ALIPAY_PRIVATE_KEY",
	"alipay.alipay_public_key": "ALIPAY_PUBLIC_KEY",
	"alipay.gateway":           "ALIPAY_GATEWAY",
	"alipay.notify_url":        "ALIPAY_NOTIFY_URL",
	"alipay.return_url":        "ALIPAY_RETURN_URL",
	"verify.sign":              "VERIFY_SIGN",
	"verify.query":             "VERIFY_QUERY",
	"verify.notify_sign":       "VERIFY_NOTIFY_SIGN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8000)
	v.SetDefault("static_dir", "web")
	v.SetDefault("provider", ProviderAlipay)
	v.SetDefault("debug", false)
	v.SetDefault("alipay.app_id", "")
	v.SetDefault("alipay.private_key", "")
	v.SetDefault("alipay.alipay_public_key", "")
	v.SetDefault("alipay.gateway", payment.DefaultGateway)
	v.SetDefault("alipay.notify_url", payment.DefaultNotifyUrl)
	v.SetDefault("alipay.return_url", payment.DefaultReturnUrl)
	v.SetDefault("verify.sign", false)
	v.SetDefault("verify.query", true)
	v.SetDefault("verify.notify_sign", true)
}

// Load 加载配置
// 参数:
//   - path: YAML配置文件路径，为空时只使用环境变量与默认值
//
// 返回:
//   - *Config: 配置
//   - error: 错误信息
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	// 环境变量中的密钥常以 \n 转义换行
	cfg.Alipay.PrivateKey = strings.ReplaceAll(cfg.Alipay.PrivateKey, `\n`, "\n")
	cfg.Alipay.AlipayPublicKey = strings.ReplaceAll(cfg.Alipay.AlipayPublicKey, `\n`, "\n")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Provider {
	case ProviderAlipay, ProviderDummy:
	default:
		return fmt.Errorf("unknown payment provider %q", c.Provider)
	}
	return nil
}

// ProviderFactory 根据配置的提供商名称返回创建函数
func (c *Config) ProviderFactory() payment.ProviderFactory {
	if c.Provider == ProviderDummy {
		return func(cfg payment.ProviderConfig) (payment.PaymentProvider, error) {
			return payment.NewDummyPaymentProvider(cfg)
		}
	}
	opts := payment.AlipayOptions{
		Debug:          c.Debug,
		SkipNotifySign: !c.Verify.NotifySign,
	}
	return func(cfg payment.ProviderConfig) (payment.PaymentProvider, error) {
		return payment.NewAlipayPaymentProvider(cfg, opts)
	}
}
