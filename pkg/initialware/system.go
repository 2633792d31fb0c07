package initialware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/feliz/pkg/app"
	"github.com/rs/zerolog/log"
)

// KeyApp は Data でアプリケーションハンドルを格納する予約キー。
const KeyApp = "app"

// ErrReservedKey は初期データに予約キーが含まれている場合のエラー。
var ErrReservedKey = errors.New("the key 'app' is reserved in InitialwareSystem")

// ErrNoApp は Data にアプリケーションハンドルがない場合のエラー。
var ErrNoApp = errors.New("Data にアプリケーションハンドルがありません")

// Data はステージ間で受け渡すデータ。
type Data map[string]any

// App はアプリケーションハンドルを返す。
func (d Data) App() (*app.App, error) {
	a, ok := d[KeyApp].(*app.App)
	if !ok || a == nil {
		return nil, ErrNoApp
	}
	return a, nil
}

// Initialware は初期化パイプラインの1ステージ。
type Initialware interface {
	// Process は初期化を行い、次のステージに渡す Data を返す。
	Process(ctx context.Context, data Data) (Data, error)
}

// Func は関数を Initialware として使うためのアダプタ。
type Func func(ctx context.Context, data Data) (Data, error)

// Process はfを呼び出す。
func (f Func) Process(ctx context.Context, data Data) (Data, error) {
	return f(ctx, data)
}

// System は初期化パイプライン。
type System struct {
	stages []Initialware
}

// NewSystem は空の System を生成する。
func NewSystem() *System {
	return &System{}
}

// Use はステージを末尾に追加する。
func (s *System) Use(i Initialware) *System {
	s.stages = append(s.stages, i)
	return s
}

// Execute はステージを順に実行する。seedに "app" キーがある場合はステージを実行せずに失敗する。
func (s *System) Execute(ctx context.Context, a *app.App, seed Data) (Data, error) {
	if _, ok := seed[KeyApp]; ok {
		return nil, ErrReservedKey
	}
	data := make(Data, len(seed)+1)
	for k, v := range seed {
		data[k] = v
	}
	data[KeyApp] = a

	start := time.Now()
	for i, stage := range s.stages {
		next, err := stage.Process(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("初期化ステージ %d (%T) に失敗: %w", i, stage, err)
		}
		if next == nil {
			next = data
		}
		if _, err := next.App(); err != nil {
			return nil, fmt.Errorf("初期化ステージ %d (%T) が %w", i, stage, err)
		}
		data = next
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("InitialwareSystem Execution Time")

	server, _ := a.Store.Section("SERVER")
	log.Info().
		Interface("name", server["NAME"]).
		Interface("host", server["HOST"]).
		Interface("port", server["PORT"]).
		Msgf("***** %v is running on %v:%v *****", server["NAME"], server["HOST"], server["PORT"])
	return data, nil
}
