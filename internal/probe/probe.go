// Package probe 对运行中的服务器发送固定的请求，逐项输出通过或失败
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Result 单项检查结果
type Result struct {
	Name   string
	Passed bool
	Detail string
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// Prober 集成检查客户端
type Prober struct {
	client *resty.Client
}

// New 创建检查客户端
// 参数:
//   - baseURL: 服务器地址，例如 http://localhost:8000
func New(baseURL string) *Prober {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second)
	return &Prober{client: client}
}

// apiResult 通用的JSON响应
type apiResult struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error_code"`
	Status    string          `json:"status"`
	Config    json.RawMessage `json:"config"`
}

func (p *Prober) checks() []check {
	checks := []check{
		{"health", p.checkHealth},
		{"config never echoes private key", p.checkConfigRedacted},
		{"notify acknowledgement", p.checkNotifyAck},
		{"create order rejects empty subject", p.checkCreateOrderValidation},
		{"verify_payment without out_trade_no", p.checkVerifyPaymentMissing},
	}
	for _, c := range verifyErrorCases() {
		checks = append(checks, check{
			name: "verify_response " + c.name,
			run: func(ctx context.Context) (string, error) {
				return p.expectErrorCode(ctx, c.payload, c.expected)
			},
		})
	}
	for _, c := range verifyShapeCases() {
		checks = append(checks, check{
			name: "verify_response shape " + c.name,
			run: func(ctx context.Context) (string, error) {
				return p.expectParsed(ctx, c.payload)
			},
		})
	}
	return checks
}

// Run 依次执行全部检查
func (p *Prober) Run(ctx context.Context) []Result {
	checks := p.checks()
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		detail, err := c.run(ctx)
		r := Result{Name: c.name, Passed: err == nil, Detail: detail}
		if err != nil {
			r.Detail = err.Error()
		}
		results = append(results, r)
	}
	return results
}

// Report 输出检查结果，返回通过的数量
func Report(w io.Writer, results []Result) int {
	passed := 0
	for _, r := range results {
		mark := "FAIL"
		if r.Passed {
			mark = "PASS"
			passed++
		}
		if r.Detail != "" {
			fmt.Fprintf(w, "[%s] %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Fprintf(w, "[%s] %s\n", mark, r.Name)
		}
	}
	fmt.Fprintf(w, "\n%d/%d checks passed\n", passed, len(results))
	return passed
}

func (p *Prober) postJSON(ctx context.Context, path string, body any) (*apiResult, int, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, 0, err
	}
	var out apiResult
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, resp.StatusCode(), fmt.Errorf("decode response (status %d): %w", resp.StatusCode(), err)
	}
	return &out, resp.StatusCode(), nil
}

func (p *Prober) checkHealth(ctx context.Context) (string, error) {
	resp, err := p.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("status %d", resp.StatusCode())
	}
	var out apiResult
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", err
	}
	if out.Status != "healthy" {
		return "", fmt.Errorf("unexpected status %q", out.Status)
	}
	return resp.String(), nil
}

func (p *Prober) checkConfigRedacted(ctx context.Context) (string, error) {
	resp, err := p.client.R().SetContext(ctx).Get("/api/config")
	if err != nil {
		return "", err
	}
	body := resp.String()
	if strings.Contains(body, "PRIVATE KEY") || strings.Contains(body, `"private_key"`) {
		return "", fmt.Errorf("private key exposed: %s", body)
	}
	return "", nil
}

func (p *Prober) checkNotifyAck(ctx context.Context) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"notify_type":  "trade_status_sync",
			"notify_id":    uuid.NewString(),
			"app_id":       "9021000151657305",
			"out_trade_no": "PROBE_" + uuid.NewString(),
			"trade_no":     "2024122022001234567890001",
			"trade_status": "TRADE_SUCCESS",
			"total_amount": "0.01",
			"subject":      "probe",
			"sign_type":    "RSA2",
			"sign":         "probe_signature",
		}).
		Post("/api/alipay/notify")
	if err != nil {
		return "", err
	}
	ack := strings.TrimSpace(resp.String())
	if ack != "success" && ack != "fail" {
		return "", fmt.Errorf("unexpected acknowledgement %q", ack)
	}
	return "ack=" + ack, nil
}

func (p *Prober) checkCreateOrderValidation(ctx context.Context) (string, error) {
	_, status, err := p.postJSON(ctx, "/api/alipay/create_order", map[string]any{
		"subject":      "",
		"total_amount": 0.01,
		"out_trade_no": "PROBE_" + uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	if status != 400 {
		return "", fmt.Errorf("expected status 400, got %d", status)
	}
	return "", nil
}

func (p *Prober) checkVerifyPaymentMissing(ctx context.Context) (string, error) {
	out, _, err := p.postJSON(ctx, "/api/alipay/verify_payment", map[string]any{"total_amount": 0.01})
	if err != nil {
		return "", err
	}
	if out.Success || out.ErrorCode != "MISSING_FIELD" {
		return "", fmt.Errorf("expected MISSING_FIELD, got success=%v error_code=%s", out.Success, out.ErrorCode)
	}
	return "", nil
}

func (p *Prober) expectErrorCode(ctx context.Context, payload any, expected string) (string, error) {
	out, _, err := p.postJSON(ctx, "/api/alipay/verify_response", payload)
	if err != nil {
		return "", err
	}
	if out.Success || out.ErrorCode != expected {
		return "", fmt.Errorf("expected %s, got success=%v error_code=%s message=%s", expected, out.Success, out.ErrorCode, out.Message)
	}
	return out.Message, nil
}

// expectParsed 负载能被解析即视为通过，测试订单在支付宝查询失败属于预期
func (p *Prober) expectParsed(ctx context.Context, payload any) (string, error) {
	out, _, err := p.postJSON(ctx, "/api/alipay/verify_response", payload)
	if err != nil {
		return "", err
	}
	if out.Success {
		return "verified", nil
	}
	if out.ErrorCode == "QUERY_FAILED" {
		return "parsed, query failed as expected for test data", nil
	}
	return "", fmt.Errorf("error_code=%s message=%s", out.ErrorCode, out.Message)
}
