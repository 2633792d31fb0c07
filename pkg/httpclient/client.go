package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/nao1215/feliz/pkg/response"
)

// Client はfelizサーバー用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サーバーのベースURL。
	baseURL string
	// token はAuthorizationヘッダーに付与するJWT。
	token string
}

// Option はクライアントの設定を変更する。
type Option func(*Client)

// WithHTTPClient は内部で使用するHTTPクライアントを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken はリクエストに付与するJWTを設定する。
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New は新しいクライアントを生成する。
// baseURLには接続先のベースURL（例: "http://localhost:8000"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken は以降のリクエストに付与するJWTを設定する。
func (c *Client) SetToken(token string) {
	c.token = token
}

// Post は指定パスにJSONボディでPOSTしエンベロープを返す。
func (c *Client) Post(ctx context.Context, path string, body any) (response.Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Get は指定パスにGETしエンベロープを返す。
func (c *Client) Get(ctx context.Context, path string) (response.Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Do は任意のメソッドでリクエストを送信しエンベロープを返す。
// 通信エラーと2xx以外のステータスのみをerrorとして返す。
// Indicatorがfalseのエンベロープはerrorにならない。
func (c *Client) Do(ctx context.Context, method, path string, body any) (response.Envelope, error) {
	var env response.Envelope

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return env, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return env, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return env, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return env, fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode == http.StatusNoContent {
		return env, nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return env, fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return env, nil
}

// Login はログインAPIを呼び出し、成功時は返されたトークンを以降のリクエストに使う。
// contentKeyはトークンが格納されたContentのキー名。
func (c *Client) Login(ctx context.Context, path string, credentials any, contentKey string) (response.Envelope, error) {
	env, err := c.Post(ctx, path, credentials)
	if err != nil {
		return env, err
	}
	if !env.Indicator {
		return env, nil
	}
	content, ok := env.Content.(map[string]any)
	if !ok {
		return env, fmt.Errorf("ログインレスポンスの形式が不正: %T", env.Content)
	}
	token, ok := content[contentKey].(string)
	if !ok || token == "" {
		return env, fmt.Errorf("ログインレスポンスに %q が含まれていない", contentKey)
	}
	c.SetToken(token)
	return env, nil
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 設定したIDはX-Request-IDヘッダーとしてサーバーに伝播する。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}
