package server

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"testing"

	payment "github.com/smart-unicom/alipay-h5"
)

type notifySigner struct {
	key *rsa.PrivateKey
}

func newNotifySigner(t *testing.T) *notifySigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &notifySigner{key: key}
}

func (s *notifySigner) config(t *testing.T) payment.ProviderConfig {
	t.Helper()
	pub, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return payment.ProviderConfig{
		AppId: "9021000140690016",
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(s.key),
		})),
		AlipayPublicKey: base64.StdEncoding.EncodeToString(pub),
	}
}

// sign 按支付宝规则对表单签名: 排序、去掉空值与 sign/sign_type 后用 RSA2 签名
func (s *notifySigner) sign(t *testing.T, form url.Values) {
	t.Helper()
	keys := make([]string, 0, len(form))
	for k := range form {
		if k == "sign" || k == "sign_type" || form.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+form.Get(k))
	}

	h := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, h[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	form.Set("sign", base64.StdEncoding.EncodeToString(sig))
}

func setupAlipayServer(t *testing.T, cfg payment.ProviderConfig) *Server {
	t.Helper()
	store := payment.NewConfigStore(func(cfg payment.ProviderConfig) (payment.PaymentProvider, error) {
		return payment.NewAlipayPaymentProvider(cfg, payment.AlipayOptions{})
	}, cfg)
	if _, err := store.Provider(); err != nil {
		t.Fatalf("Provider() error = %v", err)
	}
	return New(store, payment.NewVerifier(store, payment.VerifyOptions{}), Options{StaticDir: t.TempDir()})
}

func notifyForm() url.Values {
	form := url.Values{}
	form.Set("notify_type", "trade_status_sync")
	form.Set("notify_id", "ac05099524730693a8b330c5ecf72da9786")
	form.Set("app_id", "9021000140690016")
	form.Set("out_trade_no", "N_SIGNED_001")
	form.Set("trade_no", "2024122022001234567890001")
	form.Set("trade_status", "TRADE_SUCCESS")
	form.Set("total_amount", "0.01")
	form.Set("subject", "测试商品")
	form.Set("gmt_payment", "2024-12-20 18:00:00")
	form.Set("sign_type", "RSA2")
	return form
}

func postNotify(s *Server, form url.Values) string {
	rec := doRequest(s, http.MethodPost, "/api/alipay/notify", []byte(form.Encode()), "application/x-www-form-urlencoded")
	return rec.Body.String()
}

func TestNotifySignedByAlipay(t *testing.T) {
	signer := newNotifySigner(t)
	s := setupAlipayServer(t, signer.config(t))

	tests := []struct {
		name   string
		mutate func(form url.Values)
		want   string
	}{
		{"valid signature", func(url.Values) {}, "success"},
		{"amount changed after signing", func(form url.Values) { form.Set("total_amount", "100.00") }, "fail"},
		{"status changed after signing", func(form url.Values) { form.Set("trade_status", "TRADE_FINISHED") }, "fail"},
		{"forged signature", func(form url.Values) {
			form.Set("sign", base64.StdEncoding.EncodeToString([]byte("forged")))
		}, "fail"},
		{"missing signature", func(form url.Values) { form.Del("sign") }, "fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := notifyForm()
			signer.sign(t, form)
			tt.mutate(form)
			if got := postNotify(s, form); got != tt.want {
				t.Errorf("notify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotifySignedWithInvalidAmount(t *testing.T) {
	signer := newNotifySigner(t)
	s := setupAlipayServer(t, signer.config(t))

	form := notifyForm()
	form.Set("total_amount", "abc")
	signer.sign(t, form)
	if got := postNotify(s, form); got != "success" {
		t.Errorf("notify = %q, want success for an authenticated callback", got)
	}
}

func TestNotifyWithoutPublicKey(t *testing.T) {
	signer := newNotifySigner(t)
	cfg := signer.config(t)
	cfg.AlipayPublicKey = ""
	s := setupAlipayServer(t, cfg)

	form := notifyForm()
	form.Set("sign", "unchecked")
	if got := postNotify(s, form); got != "success" {
		t.Errorf("notify = %q, want success when no public key is configured", got)
	}
}
