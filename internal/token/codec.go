// Package token はセッション資格情報と決済相関情報の署名付きコーデックを提供する。
// どちらもサーバー側には保存されず、Cookieでクライアントに往復させる。
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "name2sign"

// audienceクレームでトークンの用途を固定し、
// セッション資格情報をpayment_infoとして流用されることを防ぐ。
const (
	audSession = "session"
	audPayment = "payment"
)

// ErrEmptyToken は空のトークン文字列を示す。
var ErrEmptyToken = errors.New("token is empty")

// Identity はセッション資格情報に埋め込む固定形状のペイロード。
// 発行時点のUserのスナップショットであり、任意キーのマップは使わない。
type Identity struct {
	UserID       string `json:"user_id"`
	KakaoID      string `json:"kakao_id"`
	Email        string `json:"email,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Correlation は決済ゲートウェイへのリダイレクト往復をまたいで
// 取引を照合するための相関情報（tid + 注文ID + 購入者ID）。
type Correlation struct {
	TID           string `json:"tid"`
	OrderID       string `json:"order_id"`
	PartnerUserID string `json:"partner_user_id"`
}

type identityClaims struct {
	Identity
	jwt.RegisteredClaims
}

type correlationClaims struct {
	Correlation
	jwt.RegisteredClaims
}

// Codec はHS256署名付きJWTの発行・検証を行う。
// 共有シークレットと現在時刻のみに依存する純粋な変換で、副作用を持たない。
type Codec struct {
	secret []byte

	// テストで時刻を固定するためのフック。
	now func() time.Time
}

// NewCodec はCodecを生成する。
func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// IssueIdentity はセッション資格情報を発行する。
// 資格情報は更新されない。再ログイン時は常に丸ごと再発行する。
func (c *Codec) IssueIdentity(identity Identity, ttl time.Duration) (string, error) {
	if identity.KakaoID == "" {
		return "", errors.New("kakao_id is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}

	now := c.now().UTC()
	claims := identityClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.UserID,
			Audience:  jwt.ClaimStrings{audSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// VerifyIdentity はセッション資格情報を検証し、ペイロードを返す。
// 構造不正・署名不正・期限切れはそれぞれjwt.ErrTokenMalformed、
// jwt.ErrTokenSignatureInvalid、jwt.ErrTokenExpiredとしてerrors.Isで識別できる。
// 期限は検証時点の現在時刻と比較する。
func (c *Codec) VerifyIdentity(raw string) (*Identity, error) {
	claims := &identityClaims{}
	if err := c.verify(raw, audSession, claims); err != nil {
		return nil, err
	}
	if claims.KakaoID == "" {
		return nil, fmt.Errorf("%w: kakao_id missing", jwt.ErrTokenInvalidClaims)
	}
	return &claims.Identity, nil
}

// IssueCorrelation は決済相関情報の署名付きトークンを発行する。
func (c *Codec) IssueCorrelation(corr Correlation, ttl time.Duration) (string, error) {
	if corr.TID == "" || corr.OrderID == "" {
		return "", errors.New("tid and order_id are required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}

	now := c.now().UTC()
	claims := correlationClaims{
		Correlation: corr,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   corr.OrderID,
			Audience:  jwt.ClaimStrings{audPayment},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign correlation token: %w", err)
	}
	return signed, nil
}

// VerifyCorrelation は決済相関トークンを検証し、相関情報を返す。
func (c *Codec) VerifyCorrelation(raw string) (*Correlation, error) {
	claims := &correlationClaims{}
	if err := c.verify(raw, audPayment, claims); err != nil {
		return nil, err
	}
	if claims.TID == "" || claims.OrderID == "" {
		return nil, fmt.Errorf("%w: correlation fields missing", jwt.ErrTokenInvalidClaims)
	}
	return &claims.Correlation, nil
}

func (c *Codec) verify(raw, audience string, claims jwt.Claims) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyToken
	}

	parsed, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
