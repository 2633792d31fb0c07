package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrEmptySecret は署名鍵が設定されていないことを表す。
var ErrEmptySecret = errors.New("JWTの署名鍵が設定されていません")

// Manager はアクセストークンの発行・検証・失効を管理する。
type Manager struct {
	// secret はHS256の署名鍵。
	secret []byte
	// expires はトークンの有効期間。0の場合は期限なし。
	expires time.Duration
	// messages は失敗時のメッセージ。
	messages Messages
	// printLog は不正トークン検出時にログを出すかどうか。
	printLog bool
	// blocklist は失効済みトークンの記録先。nilなら失効を扱わない。
	blocklist Blocklist
	// identityClaim は利用者を識別するクレーム名。
	identityClaim string
	// now は現在時刻を返す関数。
	now func() time.Time
}

// Option は Manager の設定を変更する。
type Option func(*Manager)

// WithExpiry はトークンの有効期間を設定する。0以下は期限なしを表す。
func WithExpiry(d time.Duration) Option {
	return func(m *Manager) {
		if d < 0 {
			d = 0
		}
		m.expires = d
	}
}

// WithMessages は失敗時のメッセージを設定する。空の項目は既定値を使う。
func WithMessages(msgs Messages) Option {
	return func(m *Manager) {
		m.messages = msgs.withDefaults()
	}
}

// WithPrintLog は不正トークン検出時のログ出力を設定する。
func WithPrintLog(enabled bool) Option {
	return func(m *Manager) {
		m.printLog = enabled
	}
}

// WithBlocklist は失効済みトークンの記録先を設定する。
func WithBlocklist(b Blocklist) Option {
	return func(m *Manager) {
		m.blocklist = b
	}
}

// WithIdentityClaim は利用者を識別するクレーム名を設定する。既定は "sub"。
func WithIdentityClaim(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.identityClaim = name
		}
	}
}

// NewManager は Manager を生成する。既定の有効期間は24時間。
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	m := &Manager{
		secret:        []byte(secret),
		expires:       24 * time.Hour,
		messages:      DefaultMessages(),
		identityClaim: "sub",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Expiry は有効期間を返す。期限なしの場合はfalseを返す。
func (m *Manager) Expiry() (time.Duration, bool) {
	return m.expires, m.expires > 0
}

// Messages は失敗時のメッセージを返す。
func (m *Manager) Messages() Messages {
	return m.messages
}

// CreateAccessToken は利用者の識別子と追加クレームからアクセストークンを生成する。
func (m *Manager) CreateAccessToken(identity string, extra map[string]any) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims[m.identityClaim] = identity
	claims["iat"] = jwt.NewNumericDate(now)
	claims["nbf"] = jwt.NewNumericDate(now)
	claims["jti"] = uuid.NewString()
	if m.expires > 0 {
		claims["exp"] = jwt.NewNumericDate(now.Add(m.expires))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// VerifyRequest はAuthorizationヘッダーのBearerトークンを検証する。
func (m *Manager) VerifyRequest(r *http.Request) (jwt.MapClaims, error) {
	return m.Verify(r.Context(), r.Header.Get("Authorization"))
}

// Verify はAuthorizationヘッダーの値を検証し、クレームを返す。
// 失敗時は *TokenError を返す。
func (m *Manager) Verify(ctx context.Context, authHeader string) (jwt.MapClaims, error) {
	if authHeader == "" {
		return nil, m.fail(Unauthorized, nil)
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || strings.TrimSpace(tokenString) == "" {
		return nil, m.fail(Unauthorized, errors.New("Bearer トークン形式が不正です"))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, m.fail(ExpiredToken, err)
		}
		if m.printLog {
			log.Warn().Err(err).Msg("Invalid JWT token")
		}
		return nil, m.fail(InvalidToken, err)
	}

	if m.blocklist != nil {
		jti, _ := claims["jti"].(string)
		revoked, err := m.blocklist.Contains(ctx, jti)
		if err != nil {
			return nil, fmt.Errorf("失効済みトークンの確認に失敗: %w", err)
		}
		if revoked {
			return nil, m.fail(RevokedToken, nil)
		}
	}
	return claims, nil
}

// Revoke はトークンを失効させる。失効の記録は有効期限まで保持される。
func (m *Manager) Revoke(ctx context.Context, claims jwt.MapClaims) error {
	if m.blocklist == nil {
		return errors.New("失効済みトークンの記録先が設定されていません")
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return errors.New("トークンにjtiがありません")
	}

	var ttl time.Duration
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = exp.Sub(m.now())
		if ttl <= 0 {
			return nil
		}
	}
	if err := m.blocklist.Add(ctx, jti, ttl); err != nil {
		return fmt.Errorf("トークンの失効に失敗: %w", err)
	}
	return nil
}

func (m *Manager) fail(kind FailureKind, cause error) *TokenError {
	return &TokenError{Kind: kind, Message: m.messages.forKind(kind), Err: cause}
}
