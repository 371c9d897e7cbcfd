package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultPayReadyURL   = "https://kapi.kakao.com/v1/payment/ready"
	defaultPayApproveURL = "https://kapi.kakao.com/v1/payment/approve"
)

// PayConfig はカカオペイAPIの設定。
type PayConfig struct {
	CID      string
	AdminKey string

	// テスト用にオーバーライド可能なURL
	ReadyURL   string
	ApproveURL string
}

// PayClient はカカオペイ決済のクライアント。
// readyで取引を開始し、ゲートウェイからのリダイレクト後にapproveで確定する。
type PayClient struct {
	config     PayConfig
	httpClient *http.Client
}

// NewPayClient はPayClientを生成する。
// httpClientには必ずタイムアウト付きのクライアントを渡すこと。
func NewPayClient(config PayConfig, httpClient *http.Client) *PayClient {
	if config.ReadyURL == "" {
		config.ReadyURL = defaultPayReadyURL
	}
	if config.ApproveURL == "" {
		config.ApproveURL = defaultPayApproveURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PayClient{config: config, httpClient: httpClient}
}

// ReadyRequest は決済準備リクエストのパラメータ。
type ReadyRequest struct {
	OrderID       string
	PartnerUserID string
	ItemName      string
	Quantity      int
	TotalAmount   int
	TaxFreeAmount int
	ApprovalURL   string
	CancelURL     string
	FailURL       string
}

// ReadyResponse は決済準備レスポンス。
// tidが以降のapprove呼び出しの相関キーになる。
type ReadyResponse struct {
	TID                   string `json:"tid"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
	CreatedAt             string `json:"created_at"`
}

// Ready は決済準備リクエストを送り、ゲートウェイのリダイレクト先を取得する。
func (c *PayClient) Ready(ctx context.Context, req ReadyRequest) (*ReadyResponse, error) {
	data := url.Values{
		"cid":              {c.config.CID},
		"partner_order_id": {req.OrderID},
		"partner_user_id":  {req.PartnerUserID},
		"item_name":        {req.ItemName},
		"quantity":         {strconv.Itoa(req.Quantity)},
		"total_amount":     {strconv.Itoa(req.TotalAmount)},
		"tax_free_amount":  {strconv.Itoa(req.TaxFreeAmount)},
		"approval_url":     {req.ApprovalURL},
		"cancel_url":       {req.CancelURL},
		"fail_url":         {req.FailURL},
	}

	body, err := postForm(ctx, c.httpClient, c.config.ReadyURL, "KakaoAK "+c.config.AdminKey, data)
	if err != nil {
		return nil, fmt.Errorf("payment ready failed: %w", err)
	}

	var ready ReadyResponse
	if err := json.Unmarshal(body, &ready); err != nil {
		return nil, fmt.Errorf("failed to parse ready response: %w", err)
	}
	if ready.TID == "" {
		return nil, fmt.Errorf("empty tid in ready response")
	}
	if ready.NextRedirectPCURL == "" {
		return nil, fmt.Errorf("empty redirect url in ready response")
	}

	return &ready, nil
}

// ApproveRequest は決済承認リクエストのパラメータ。
// pg_tokenはゲートウェイがsuccessコールバックのクエリで渡してくる。
type ApproveRequest struct {
	TID           string
	OrderID       string
	PartnerUserID string
	PGToken       string
}

// Amount は承認レスポンス中の金額内訳。
type Amount struct {
	Total   int `json:"total"`
	TaxFree int `json:"tax_free"`
	VAT     int `json:"vat"`
}

// ApproveResponse は決済承認レスポンス。
type ApproveResponse struct {
	AID        string `json:"aid"`
	TID        string `json:"tid"`
	OrderID    string `json:"partner_order_id"`
	Amount     Amount `json:"amount"`
	ApprovedAt string `json:"approved_at"`
}

// Approve は決済承認リクエストを送り、取引を確定する。
func (c *PayClient) Approve(ctx context.Context, req ApproveRequest) (*ApproveResponse, error) {
	data := url.Values{
		"cid":              {c.config.CID},
		"tid":              {req.TID},
		"partner_order_id": {req.OrderID},
		"partner_user_id":  {req.PartnerUserID},
		"pg_token":         {req.PGToken},
	}

	body, err := postForm(ctx, c.httpClient, c.config.ApproveURL, "KakaoAK "+c.config.AdminKey, data)
	if err != nil {
		return nil, fmt.Errorf("payment approve failed: %w", err)
	}

	var approve ApproveResponse
	if err := json.Unmarshal(body, &approve); err != nil {
		return nil, fmt.Errorf("failed to parse approve response: %w", err)
	}

	return &approve, nil
}
