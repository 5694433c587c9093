package payment

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"
	"testing"

	"github.com/go-pay/gopay"
	"github.com/shopspring/decimal"
)

type testKeys struct {
	key        *rsa.PrivateKey
	privatePem string
	publicB64  string
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privatePem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return &testKeys{
		key:        key,
		privatePem: string(privatePem),
		publicB64:  base64.StdEncoding.EncodeToString(pub),
	}
}

func (k *testKeys) sign(t *testing.T, content string) string {
	t.Helper()
	h := sha256.Sum256([]byte(content))
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.key, crypto.SHA256, h[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func newTestAlipay(t *testing.T, keys *testKeys, opts AlipayOptions) *AlipayPaymentProvider {
	t.Helper()
	pp, err := NewAlipayPaymentProvider(ProviderConfig{
		AppId:           "9021000140690016",
		PrivateKey:      keys.privatePem,
		AlipayPublicKey: keys.publicB64,
	}, opts)
	if err != nil {
		t.Fatalf("NewAlipayPaymentProvider() error = %v", err)
	}
	return pp
}

func TestNewAlipayPaymentProvider_InvalidConfig(t *testing.T) {
	_, err := NewAlipayPaymentProvider(ProviderConfig{PrivateKey: "x"}, AlipayOptions{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing app_id: error = %v, want ErrInvalidConfig", err)
	}

	_, err = NewAlipayPaymentProvider(ProviderConfig{AppId: "2021", PrivateKey: "not-a-key"}, AlipayOptions{})
	if err == nil {
		t.Error("expected error for malformed private key")
	}
}

func TestAlipayPaymentProvider_PayUrl(t *testing.T) {
	pp := newTestAlipay(t, newTestKeys(t), AlipayOptions{})

	for _, pt := range []PaymentType{PaymentTypeH5, PaymentTypePage} {
		resp, err := pp.Pay(context.Background(), &PayReq{
			Subject:     "test",
			TotalAmount: decimal.RequireFromString("0.01"),
			OutTradeNo:  "PAY_" + string(pt),
			PaymentType: pt,
		})
		if err != nil {
			t.Fatalf("Pay(%s) error = %v", pt, err)
		}
		if resp.PayUrl == "" || resp.OrderString != "" {
			t.Errorf("Pay(%s) = %+v, want pay url", pt, resp)
		}
		if resp.OutTradeNo != "PAY_"+string(pt) {
			t.Errorf("OutTradeNo = %s", resp.OutTradeNo)
		}
	}

	app, err := pp.Pay(context.Background(), &PayReq{
		Subject:     "test",
		TotalAmount: decimal.RequireFromString("0.01"),
		OutTradeNo:  "PAY_APP",
		PaymentType: PaymentTypeApp,
	})
	if err != nil {
		t.Fatalf("Pay(app) error = %v", err)
	}
	if app.OrderString == "" || !strings.Contains(app.OrderString, "sign=") {
		t.Errorf("OrderString = %s", app.OrderString)
	}
}

func signedNotify(t *testing.T, keys *testKeys) gopay.BodyMap {
	t.Helper()
	bm := gopay.BodyMap{}
	bm.Set("notify_type", "trade_status_sync").
		Set("app_id", "9021000140690016").
		Set("out_trade_no", "N_001").
		Set("trade_no", "2024122022001234567890001").
		Set("trade_status", TradeStatusSuccess).
		Set("total_amount", "0.01").
		Set("subject", "test").
		Set("sign_type", "RSA2")
	bm.Set("sign", keys.sign(t, signContent(bm)))
	return bm
}

func TestAlipayPaymentProvider_Notify(t *testing.T) {
	keys := newTestKeys(t)
	pp := newTestAlipay(t, keys, AlipayOptions{})

	bm := signedNotify(t, keys)
	result, err := pp.Notify(context.Background(), bm)
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if result.PaymentStatus != PaymentStatePaid || result.OutTradeNo != "N_001" {
		t.Errorf("Notify() = %+v", result)
	}
	if bm.GetString("sign") == "" {
		t.Error("Notify() removed sign from caller params")
	}

	tampered := signedNotify(t, keys)
	tampered.Set("total_amount", "100.00")
	if _, err := pp.Notify(context.Background(), tampered); !errors.Is(err, ErrInvalidSign) {
		t.Errorf("tampered Notify() error = %v, want ErrInvalidSign", err)
	}
}

func TestAlipayPaymentProvider_NotifySkipSign(t *testing.T) {
	keys := newTestKeys(t)
	pp := newTestAlipay(t, keys, AlipayOptions{SkipNotifySign: true})

	bm := signedNotify(t, keys)
	bm.Set("sign", "forged")
	if _, err := pp.Notify(context.Background(), bm); err != nil {
		t.Errorf("Notify() error = %v, want nil when signature check is disabled", err)
	}
}

func TestAlipayPaymentProvider_VerifyAppPayResult(t *testing.T) {
	keys := newTestKeys(t)
	pp := newTestAlipay(t, keys, AlipayOptions{})

	r := &AppPayResult{SignData: appPayFields, Sign: keys.sign(t, appPayFields)}
	ok, err := pp.VerifyAppPayResult(r)
	if err != nil || !ok {
		t.Errorf("VerifyAppPayResult() = %v, %v; want true", ok, err)
	}

	r.SignData = strings.Replace(appPayFields, "0.01", "9.99", 1)
	if ok, _ := pp.VerifyAppPayResult(r); ok {
		t.Error("VerifyAppPayResult() accepted modified content")
	}

	if ok, _ := pp.VerifyAppPayResult(&AppPayResult{SignData: appPayFields}); ok {
		t.Error("VerifyAppPayResult() accepted missing sign")
	}
}

func TestAlipayPaymentProvider_GetResponseError(t *testing.T) {
	pp := &AlipayPaymentProvider{}
	if got := pp.GetResponseError(nil); got != "success" {
		t.Errorf("GetResponseError(nil) = %s", got)
	}
	if got := pp.GetResponseError(errors.New("x")); got != "fail" {
		t.Errorf("GetResponseError(err) = %s", got)
	}
}
