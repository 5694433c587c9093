// Package payment 支付相关功能
package payment

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-pay/gopay/pkg/xlog"
)

// ProviderFactory 根据配置创建支付提供商
type ProviderFactory func(cfg ProviderConfig) (PaymentProvider, error)

// ConfigStore 保存当前的接入配置以及据此创建的支付提供商
// 配置只保存在内存中，进程重启后恢复为启动配置
type ConfigStore struct {
	mu        sync.RWMutex
	cfg       ProviderConfig
	provider  PaymentProvider
	factory   ProviderFactory
	updatedAt time.Time
}

// NewConfigStore 创建配置存储并尝试初始化支付提供商
// 初始化失败不会返回错误，提供商保持未就绪状态，直到配置被更新
func NewConfigStore(factory ProviderFactory, cfg ProviderConfig) *ConfigStore {
	s := &ConfigStore{
		cfg:       cfg.WithDefaults(),
		factory:   factory,
		updatedAt: time.Now(),
	}
	provider, err := factory(s.cfg)
	if err != nil {
		xlog.Warnf("payment provider not initialized: %v", err)
		return s
	}
	s.provider = provider
	xlog.Infof("payment provider initialized: %s", s.cfg)
	return s
}

// Config 返回当前配置的副本
func (s *ConfigStore) Config() ProviderConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Redacted 返回脱敏后的当前配置；未配置应用ID时 ok 为 false
func (s *ConfigStore) Redacted() (cfg RedactedConfig, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.AppId == "" {
		return RedactedConfig{}, false
	}
	return s.cfg.Redacted(), true
}

// Provider 返回当前的支付提供商
func (s *ConfigStore) Provider() (PaymentProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return nil, ErrProviderNotReady
	}
	return s.provider, nil
}

// UpdatedAt 返回配置最近一次变更的时间
func (s *ConfigStore) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Update 整体替换配置，并用新配置重建支付提供商
// 新配置无效或提供商创建失败时保留原有配置
func (s *ConfigStore) Update(cfg ProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.WithDefaults()
	provider, err := s.factory(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.provider = provider
	s.updatedAt = time.Now()
	s.mu.Unlock()

	xlog.Infof("alipay config updated: %s", cfg)
	return nil
}
