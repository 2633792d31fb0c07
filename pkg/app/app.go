// Package app はアプリケーションハンドルを提供する。
//
// ハンドルはGinエンジン、設定ストア、JWTマネージャ、JSONエンコーダをまとめたもので、
// initialwareが起動時に構成し、ミドルウェアとルートハンドラがリクエスト処理中に参照する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/pkg/jwtauth"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
)

// DefaultConfigDir は設定ファイルを置くディレクトリの既定値。
const DefaultConfigDir = "configs"

// App はアプリケーションハンドル。
type App struct {
	// Engine はGinのHTTPエンジン。
	Engine *gin.Engine
	// Store はプロセス全体で共有する設定ストア。
	Store *store.Store
	// JWT はアクセストークンの管理。JWT機能が無効な場合はnil。
	JWT *jwtauth.Manager
	// Encoder はレスポンスのJSONエンコーダ。
	Encoder *response.Encoder
	// ConfigDir は設定ファイルを探すディレクトリ。
	ConfigDir string

	mu      sync.Mutex
	closers []io.Closer
}

// Option は App の設定を変更する。
type Option func(*App)

// WithConfigDir は設定ディレクトリを指定する。
func WithConfigDir(dir string) Option {
	return func(a *App) {
		a.ConfigDir = dir
	}
}

// WithStore は設定ストアを差し替える。
func WithStore(s *store.Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithEngine はGinエンジンを差し替える。
func WithEngine(e *gin.Engine) Option {
	return func(a *App) {
		a.Engine = e
	}
}

// New は App を生成する。
func New(opts ...Option) *App {
	a := &App{
		Engine:    gin.New(),
		Store:     store.New(),
		Encoder:   response.NewEncoder(),
		ConfigDir: DefaultConfigDir,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Addr は CONFIGS.SERVER の HOST と PORT からリッスンアドレスを返す。
func (a *App) Addr() string {
	host := fmt.Sprint(a.Store.Lookup("CONFIGS.SERVER.HOST", ""))
	port := fmt.Sprint(a.Store.Lookup("CONFIGS.SERVER.PORT", "8080"))
	return net.JoinHostPort(host, port)
}

// Render は値をJSONとしてステータス200で書き出す。
func (a *App) Render(c *gin.Context, v any) {
	b, err := a.Encoder.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("レスポンスのエンコードに失敗")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Addr(),
		Handler:           a.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return a.Close()
}

// AddCloser は終了時に閉じるリソースを登録する。
func (a *App) AddCloser(c io.Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, c)
}

// Close はストアに登録された接続ハンドラと AddCloser で登録したリソースをすべて閉じる。
func (a *App) Close() error {
	var errs []error
	for _, h := range a.Store.Handlers() {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
