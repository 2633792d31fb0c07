package jwtauth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewManager()でエラーが発生: %v", err)
	}
	return m
}

// TestNewManager はManagerの生成を検証する。
func TestNewManager(t *testing.T) {
	t.Parallel()

	t.Run("署名鍵が空の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := NewManager(""); !errors.Is(err, ErrEmptySecret) {
			t.Errorf("err = %v, want ErrEmptySecret", err)
		}
	})

	t.Run("既定の有効期間が24時間であること", func(t *testing.T) {
		t.Parallel()

		d, ok := newTestManager(t).Expiry()
		if !ok || d != 24*time.Hour {
			t.Errorf("Expiry() = (%v, %v), want (24h, true)", d, ok)
		}
	})

	t.Run("空のメッセージは既定値で埋められること", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, WithMessages(Messages{Unauthorized: "ログインしてください"}))
		msgs := m.Messages()
		if msgs.Unauthorized != "ログインしてください" {
			t.Errorf("Unauthorized = %q", msgs.Unauthorized)
		}
		if msgs.Expired != "Expired JWT token" {
			t.Errorf("Expired = %q, want %q", msgs.Expired, "Expired JWT token")
		}
	})
}

// TestCreateAccessToken はトークン生成を検証する。
func TestCreateAccessToken(t *testing.T) {
	t.Parallel()

	t.Run("識別子と追加クレームを含むこと", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t)
		tokenStr, err := m.CreateAccessToken("user-123", map[string]any{"permission": "admin"})
		if err != nil {
			t.Fatalf("CreateAccessToken()でエラーが発生: %v", err)
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil || !token.Valid {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if claims["sub"] != "user-123" {
			t.Errorf("sub = %v, want %q", claims["sub"], "user-123")
		}
		if claims["permission"] != "admin" {
			t.Errorf("permission = %v, want %q", claims["permission"], "admin")
		}
		if jti, _ := claims["jti"].(string); jti == "" {
			t.Error("jtiが設定されていない")
		}
		if token.Method.Alg() != "HS256" {
			t.Errorf("アルゴリズム = %q, want %q", token.Method.Alg(), "HS256")
		}
	})

	t.Run("期限なしの場合はexpを含まないこと", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, WithExpiry(0))
		tokenStr, err := m.CreateAccessToken("user-eternal", nil)
		if err != nil {
			t.Fatalf("CreateAccessToken()でエラーが発生: %v", err)
		}
		claims := jwt.MapClaims{}
		if _, _, err := new(jwt.Parser).ParseUnverified(tokenStr, claims); err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if _, ok := claims["exp"]; ok {
			t.Error("期限なしのトークンにexpが含まれている")
		}
	})

	t.Run("識別クレーム名を変更できること", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, WithIdentityClaim("uid"))
		tokenStr, err := m.CreateAccessToken("u-1", nil)
		if err != nil {
			t.Fatalf("CreateAccessToken()でエラーが発生: %v", err)
		}
		claims, err := m.Verify(context.Background(), "Bearer "+tokenStr)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if claims["uid"] != "u-1" {
			t.Errorf("uid = %v, want %q", claims["uid"], "u-1")
		}
	})
}

func failureKind(t *testing.T, err error) FailureKind {
	t.Helper()
	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("err = %v, want *TokenError", err)
	}
	return tokenErr.Kind
}

// TestVerify はトークン検証と失敗の分類を検証する。
func TestVerify(t *testing.T) {
	t.Parallel()

	t.Run("Authorizationヘッダーがない場合はUnauthorizedになること", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t)
		req := httptest.NewRequest("GET", "/api/users/get", nil)
		_, err := m.VerifyRequest(req)
		if kind := failureKind(t, err); kind != Unauthorized {
			t.Errorf("Kind = %v, want %v", kind, Unauthorized)
		}

		var tokenErr *TokenError
		errors.As(err, &tokenErr)
		env := tokenErr.Envelope()
		if env.Indicator || env.Message != "Missing JWT token" {
			t.Errorf("Envelope() = %+v", env)
		}
	})

	t.Run("Bearer接頭辞がない場合はUnauthorizedになること", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t)
		_, err := m.Verify(context.Background(), "Token abc")
		if kind := failureKind(t, err); kind != Unauthorized {
			t.Errorf("Kind = %v, want %v", kind, Unauthorized)
		}
	})

	t.Run("署名が異なる場合はInvalidTokenになること", func(t *testing.T) {
		t.Parallel()

		other, err := NewManager("another-secret")
		if err != nil {
			t.Fatal(err)
		}
		tokenStr, err := other.CreateAccessToken("user-1", nil)
		if err != nil {
			t.Fatal(err)
		}

		m := newTestManager(t, WithPrintLog(true))
		_, err = m.Verify(context.Background(), "Bearer "+tokenStr)
		if kind := failureKind(t, err); kind != InvalidToken {
			t.Errorf("Kind = %v, want %v", kind, InvalidToken)
		}
	})

	t.Run("期限切れの場合はExpiredTokenになること", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, WithExpiry(time.Minute))
		m.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tokenStr, err := m.CreateAccessToken("user-1", nil)
		if err != nil {
			t.Fatal(err)
		}
		m.now = time.Now

		_, err = m.Verify(context.Background(), "Bearer "+tokenStr)
		if kind := failureKind(t, err); kind != ExpiredToken {
			t.Errorf("Kind = %v, want %v", kind, ExpiredToken)
		}
	})

	t.Run("HS256以外のアルゴリズムは拒否すること", func(t *testing.T) {
		t.Parallel()

		token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-1"})
		tokenStr, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatal(err)
		}
		m := newTestManager(t)
		_, err = m.Verify(context.Background(), "Bearer "+tokenStr)
		if kind := failureKind(t, err); kind != InvalidToken {
			t.Errorf("Kind = %v, want %v", kind, InvalidToken)
		}
	})

	t.Run("失効済みの場合はRevokedTokenになること", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t, WithBlocklist(NewMemoryBlocklist()))
		tokenStr, err := m.CreateAccessToken("user-1", nil)
		if err != nil {
			t.Fatal(err)
		}
		claims, err := m.Verify(context.Background(), "Bearer "+tokenStr)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if err := m.Revoke(context.Background(), claims); err != nil {
			t.Fatalf("Revoke()でエラーが発生: %v", err)
		}

		_, err = m.Verify(context.Background(), "Bearer "+tokenStr)
		if kind := failureKind(t, err); kind != RevokedToken {
			t.Errorf("Kind = %v, want %v", kind, RevokedToken)
		}
	})

	t.Run("記録先がない場合はRevokeがエラーになること", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(t)
		if err := m.Revoke(context.Background(), jwt.MapClaims{"jti": "x"}); err == nil {
			t.Error("エラーが返されなかった")
		}
	})
}

// TestMemoryBlocklist はメモリ上の失効リストを検証する。
func TestMemoryBlocklist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMemoryBlocklist()
	now := time.Now()
	b.now = func() time.Time { return now }

	if err := b.Add(ctx, "short", time.Second); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(ctx, "forever", 0); err != nil {
		t.Fatal(err)
	}

	if ok, _ := b.Contains(ctx, "short"); !ok {
		t.Error("short が記録されていない")
	}
	b.now = func() time.Time { return now.Add(time.Minute) }
	if ok, _ := b.Contains(ctx, "short"); ok {
		t.Error("期限切れの記録が残っている")
	}
	if ok, _ := b.Contains(ctx, "forever"); !ok {
		t.Error("無期限の記録が消えている")
	}
	if ok, _ := b.Contains(ctx, "unknown"); ok {
		t.Error("未登録のjtiが失効扱いになっている")
	}
}

// TestOpenRedisBlocklist はRedisのURL解析を検証する。
func TestOpenRedisBlocklist(t *testing.T) {
	t.Parallel()

	t.Run("不正なURLはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := OpenRedisBlocklist("://bad", ""); err == nil {
			t.Error("エラーが返されなかった")
		}
	})

	t.Run("既定の接頭辞が使われること", func(t *testing.T) {
		t.Parallel()

		b, err := OpenRedisBlocklist("redis://localhost:6379/0", "")
		if err != nil {
			t.Fatalf("OpenRedisBlocklist()でエラーが発生: %v", err)
		}
		defer b.Close()
		if got := b.key("abc"); got != "feliz:revoked:abc" {
			t.Errorf("key() = %q", got)
		}
	})
}
