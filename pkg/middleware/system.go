package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/pkg/app"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/rs/zerolog/log"
)

// Middleware はパイプラインの1ステージ。
// エラーを返すとパイプラインは中断され、エラーは response.ErrorHandler で
// 失敗エンベロープに変換されてクライアントに返される。
type Middleware interface {
	// ProcessRequest はルートハンドラの前に実行される。
	ProcessRequest(c *Context, stop func()) error
	// ProcessResponse はルートハンドラの後に実行される。
	ProcessResponse(c *Context, stop func()) error
}

// Base は何もしない Middleware。片方の処理だけを持つステージに埋め込んで使う。
type Base struct{}

// ProcessRequest は何もしない。
func (Base) ProcessRequest(*Context, func()) error { return nil }

// ProcessResponse は何もしない。
func (Base) ProcessResponse(*Context, func()) error { return nil }

// System はミドルウェアパイプライン。
type System struct {
	// app はアプリケーションハンドル。
	app *app.App
	mu  sync.RWMutex
	// stages は実行順のステージ。
	stages []Middleware
	// logIndicatorFalse は業務上の失敗もログに出すかどうか。
	logIndicatorFalse bool
}

// Option は System の設定を変更する。
type Option func(*System)

// WithIndicatorFalseLog は業務上の失敗（IndicatorFalseError）もログに出すよう設定する。
func WithIndicatorFalseLog(enabled bool) Option {
	return func(s *System) {
		s.logIndicatorFalse = enabled
	}
}

// NewSystem は組み込みステージを先頭に持つパイプラインを生成する。
func NewSystem(a *app.App, opts ...Option) *System {
	s := &System{
		app:    a,
		stages: []Middleware{globalInjection{}, inputParsing{}, jwtVerification{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use はステージを末尾に追加する。
func (s *System) Use(m Middleware) *System {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, m)
	return s
}

// Stages は現在のステージ一覧のコピーを返す。
func (s *System) Stages() []Middleware {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Middleware, len(s.stages))
	copy(out, s.stages)
	return out
}

// ProcessRequest はリクエスト側の処理を順に実行する。
// stopが呼ばれたパスは以降のステージを実行せず、打ち切りは次のパスに持ち越さない。
func (s *System) ProcessRequest(c *Context) error {
	stopped := false
	stop := func() { stopped = true }
	for _, m := range s.Stages() {
		if stopped {
			break
		}
		if err := m.ProcessRequest(c, stop); err != nil {
			return err
		}
	}
	return nil
}

// ProcessResponse はレスポンス側の処理を順に実行する。
func (s *System) ProcessResponse(c *Context) error {
	stopped := false
	stop := func() { stopped = true }
	for _, m := range s.Stages() {
		if stopped {
			break
		}
		if err := m.ProcessResponse(c, stop); err != nil {
			return err
		}
	}
	return nil
}

// Handler はパイプラインをGinミドルウェアとして返す。
// ルートを登録する前に Engine.Use で組み込む必要がある。
func (s *System) Handler() gin.HandlerFunc {
	return func(gc *gin.Context) {
		c := NewContext(gc, s.app)
		c.logIndicatorFalse = s.logIndicatorFalse
		gc.Set(contextKey, c)

		if err := s.ProcessRequest(c); err != nil {
			c.SetResponse(response.ErrorHandler(err, s.logIndicatorFalse))
			gc.Abort()
		} else {
			gc.Next()
		}

		if err := s.ProcessResponse(c); err != nil {
			c.SetResponse(response.ErrorHandler(err, s.logIndicatorFalse))
		}
		s.write(gc, c)
	}
}

// write はコンテキストのレスポンスを書き出す。すでに書き込み済みなら何もしない。
func (s *System) write(gc *gin.Context, c *Context) {
	res := c.Response
	if res == nil || gc.Writer.Written() {
		return
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	if res.Data == nil {
		b, err := s.app.Encoder.Marshal(res.Body)
		if err != nil {
			log.Error().Err(err).Str("path", c.Path()).Msg("レスポンスのエンコードに失敗")
			gc.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		res.Data = b
		res.ContentType = jsonContentType
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = jsonContentType
	}
	gc.Data(status, contentType, res.Data)
}
