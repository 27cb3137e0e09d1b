// Package mercadopago 提供 Mercado Pago 支付网关 API 封装
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL 生产环境 API 地址
const DefaultBaseURL = "https://api.mercadopago.com"

// 支付状态
const (
	StatusApproved   = "approved"
	StatusPending    = "pending"
	StatusInProcess  = "in_process"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusChargeback = "charged_back"
)

// ErrNotFound 支付记录不存在
var ErrNotFound = errors.New("mercadopago: resource not found")

// APIError 网关返回的错误响应
type APIError struct {
	StatusCode int
	Body       string
}

// Error 实现 error 接口
func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: api error (status: %d): %s", e.StatusCode, e.Body)
}

// Config 客户端配置
type Config struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// Client Mercado Pago 客户端
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewClient 创建客户端，请求经 otelhttp 传输层记录链路
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		accessToken: cfg.AccessToken,
		baseURL:     baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Configured 是否已配置访问令牌
func (c *Client) Configured() bool {
	return c != nil && c.accessToken != ""
}

// Payment 支付详情
type Payment struct {
	ID                int64                  `json:"id"`
	Status            string                 `json:"status"`
	StatusDetail      string                 `json:"status_detail"`
	TransactionAmount float64                `json:"transaction_amount"`
	CurrencyID        string                 `json:"currency_id"`
	ExternalReference string                 `json:"external_reference"`
	Metadata          map[string]interface{} `json:"metadata"`
	DateApproved      *time.Time             `json:"date_approved"`
	Payer             *Payer                 `json:"payer,omitempty"`
}

// IsApproved 是否支付成功
func (p *Payment) IsApproved() bool {
	return p.Status == StatusApproved
}

// Payer 付款人
type Payer struct {
	Email string `json:"email,omitempty"`
}

// Item 商品
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

// BackURLs 支付完成后的跳转地址
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// PreferenceRequest 创建收银台请求
type PreferenceRequest struct {
	Items             []Item                 `json:"items"`
	Payer             *Payer                 `json:"payer,omitempty"`
	BackURLs          *BackURLs              `json:"back_urls,omitempty"`
	AutoReturn        string                 `json:"auto_return,omitempty"`
	ExternalReference string                 `json:"external_reference"`
	NotificationURL   string                 `json:"notification_url,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Preference 收银台
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// GetPayment 查询支付详情
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreatePreference 创建收银台
func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", req, &pref); err != nil {
		return nil, err
	}
	return &pref, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("mercadopago: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("mercadopago: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", uuid.New().String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mercadopago: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("mercadopago: unmarshal response: %w", err)
	}
	return nil
}

// Notification 支付通知
type Notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// DataID 返回通知中的资源 ID，兼容字符串与数字两种格式
func (n *Notification) DataID() string {
	raw := strings.TrimSpace(string(n.Data.ID))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(n.Data.ID, &s); err == nil {
		return s
	}
	var num json.Number
	if err := json.Unmarshal(n.Data.ID, &num); err == nil {
		return num.String()
	}
	return ""
}

// IsPayment 是否为支付类通知
func (n *Notification) IsPayment() bool {
	return n.Type == "payment" || strings.HasPrefix(n.Action, "payment.")
}

// ParseNotification 解析通知请求体
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("mercadopago: invalid notification: %w", err)
	}
	return &n, nil
}
