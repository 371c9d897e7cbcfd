// Package kakao はカカオのOAuth認証APIとカカオペイ決済APIのクライアントを提供する。
// どちらも1呼び出し1リクエストで、リトライは行わない。
package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultAuthorizeURL = "https://kauth.kakao.com/oauth/authorize"
	defaultTokenURL     = "https://kauth.kakao.com/oauth/token"
	defaultUserMeURL    = "https://kapi.kakao.com/v2/user/me"
	defaultLogoutURL    = "https://kapi.kakao.com/v1/user/logout"
	defaultUnlinkURL    = "https://kapi.kakao.com/v1/user/unlink"
)

// OAuthConfig はカカオログインAPIの設定。
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AdminKeyはサーバー間API（logout/unlink）の認可に使う。
	AdminKey string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	TokenURL     string
	UserMeURL    string
	LogoutURL    string
	UnlinkURL    string
}

// OAuthClient はカカオログイン（OAuth 2.0）のクライアント。
type OAuthClient struct {
	config     OAuthConfig
	httpClient *http.Client
}

// NewOAuthClient はOAuthClientを生成する。
// httpClientには必ずタイムアウト付きのクライアントを渡すこと。
func NewOAuthClient(config OAuthConfig, httpClient *http.Client) *OAuthClient {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.UserMeURL == "" {
		config.UserMeURL = defaultUserMeURL
	}
	if config.LogoutURL == "" {
		config.LogoutURL = defaultLogoutURL
	}
	if config.UnlinkURL == "" {
		config.UnlinkURL = defaultUnlinkURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthClient{config: config, httpClient: httpClient}
}

// AuthorizeURL はカカオ認可エンドポイントのURLを生成する。
// prompt=loginで毎回ログイン画面を表示させる。
func (c *OAuthClient) AuthorizeURL() string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.config.ClientID},
		"redirect_uri":  {c.config.RedirectURI},
		"prompt":        {"login"},
	}
	return c.config.AuthorizeURL + "?" + params.Encode()
}

// Token はカカオのトークンエンドポイントのレスポンス。
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 非200レスポンスまたはaccess_token欠落はエラーを返す。
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"redirect_uri":  {c.config.RedirectURI},
		"code":          {code},
	}

	body, err := postForm(ctx, c.httpClient, c.config.TokenURL, "", data)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tok, nil
}

// Profile はカカオのユーザー情報から抽出した固定形状のプロフィール。
// kakao_account以下のフィールドは同意状況により欠落しうるため、
// 欠落は空文字として扱いエラーにはしない。
type Profile struct {
	KakaoID      string
	Email        string
	Nickname     string
	ProfileImage string
}

// kakaoUserInfo は/v2/user/meのレスポンス。idのみ必須。
type kakaoUserInfo struct {
	ID           json.Number `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
	Properties struct {
		Nickname string `json:"nickname"`
	} `json:"properties"`
}

// FetchProfile はアクセストークンでユーザー情報を取得する。
func (c *OAuthClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserMeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info kakaoUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}
	if info.ID.String() == "" {
		return nil, fmt.Errorf("empty id in user info response")
	}

	// nicknameはkakao_account.profileを優先し、なければpropertiesから補完する
	nickname := info.KakaoAccount.Profile.Nickname
	if nickname == "" {
		nickname = info.Properties.Nickname
	}

	return &Profile{
		KakaoID:      info.ID.String(),
		Email:        info.KakaoAccount.Email,
		Nickname:     nickname,
		ProfileImage: info.KakaoAccount.Profile.ProfileImageURL,
	}, nil
}

// Logout はカカオ側のセッションをサーバー間APIで破棄する。
// ベストエフォート操作であり、呼び出し元は失敗をログに記録して握りつぶす。
func (c *OAuthClient) Logout(ctx context.Context, kakaoID string) error {
	return c.adminPost(ctx, c.config.LogoutURL, kakaoID)
}

// Unlink はカカオアカウントとの連結を解除する。
// 退会フローから呼ばれるベストエフォート操作。
func (c *OAuthClient) Unlink(ctx context.Context, kakaoID string) error {
	return c.adminPost(ctx, c.config.UnlinkURL, kakaoID)
}

// adminPost はアドミンキー認可のtarget_id指定POSTを送る。
func (c *OAuthClient) adminPost(ctx context.Context, endpoint, kakaoID string) error {
	data := url.Values{
		"target_id_type": {"user_id"},
		"target_id":      {kakaoID},
	}

	if _, err := postForm(ctx, c.httpClient, endpoint, "KakaoAK "+c.config.AdminKey, data); err != nil {
		return err
	}
	return nil
}

// postForm はフォームエンコードのPOSTを送り、200のレスポンスボディを返す。
// カカオのOAuth API・決済APIはいずれもこの形式を取る。
func postForm(ctx context.Context, client *http.Client, endpoint, authorization string, data url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("kakao api returned non-200",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
