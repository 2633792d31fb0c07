// Package server はfelizアプリケーションの起動手順を組み立てる。
package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/internal/account"
	"github.com/nao1215/feliz/pkg/api"
	"github.com/nao1215/feliz/pkg/app"
	"github.com/nao1215/feliz/pkg/dbhandler"
	"github.com/nao1215/feliz/pkg/initialware"
	"github.com/nao1215/feliz/pkg/middleware"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
)

// Options は起動手順の設定。
type Options struct {
	// ConfigFile は設定ディレクトリからのルート設定ファイルのパス。空の場合は既定値。
	ConfigFile string
	// EnvPrefix は設定を上書きする環境変数の接頭辞。空の場合は既定値。
	EnvPrefix string
	// Registry はAPIグループの登録簿。nilの場合は api.DefaultRegistry。
	Registry *api.Registry
	// OpenPostgres はpostgres種別の接続ハンドラを生成する。nilの場合はpgxで接続する。
	OpenPostgres func(cfg dbhandler.ConnConfig) (dbhandler.Relational, error)
	// OpenMongo はmongo種別の接続ハンドラを生成する。nilの場合はmongo-driverで接続する。
	OpenMongo func(ctx context.Context, cfg dbhandler.ConnConfig, schemas []string) (dbhandler.Handler, error)
	// MongoModels はエイリアスごとの接続確認に使うコレクション名。
	MongoModels map[string][]string
	// JSONHook はレスポンスのJSON変換フック。
	JSONHook response.JSONHook
}

// Setup は設定の読み込みからAPIの登録までを実行する。
func Setup(ctx context.Context, a *app.App, opts Options) error {
	s := initialware.NewSystem().
		Use(initialware.ImportGlobals{ConfigFile: opts.ConfigFile, EnvPrefix: opts.EnvPrefix}).
		Use(initialware.JWTSetup{}).
		Use(initialware.CORSSetup{}).
		Use(postgresSetup(opts)).
		Use(initialware.MongoSetup{Open: opts.OpenMongo, Models: opts.MongoModels}).
		Use(initialware.JSONEncoding{Hook: opts.JSONHook}).
		Use(initialware.ImportI18N{}).
		Use(initialware.Func(useMiddleware)).
		Use(initialware.RegisterAPIs{Registry: opts.Registry})

	if _, err := s.Execute(ctx, a, nil); err != nil {
		return fmt.Errorf("初期化に失敗: %w", err)
	}
	return nil
}

// SetupStorage は設定を読み込み、利用者テーブルのある接続だけを開く。
// サーバーを起動せずに利用者を操作するコマンドで使う。
func SetupStorage(ctx context.Context, a *app.App, opts Options) error {
	s := initialware.NewSystem().
		Use(initialware.ImportGlobals{ConfigFile: opts.ConfigFile, EnvPrefix: opts.EnvPrefix}).
		Use(postgresSetup(opts))
	if _, err := s.Execute(ctx, a, nil); err != nil {
		return fmt.Errorf("接続の初期化に失敗: %w", err)
	}
	return nil
}

func postgresSetup(opts Options) initialware.PostgresSetup {
	return initialware.PostgresSetup{
		Open:         opts.OpenPostgres,
		Migrations:   account.Migrations,
		MigrationDir: account.MigrationDir,
	}
}

// useMiddleware は設定を読み込んだ後にミドルウェアパイプラインを組み立てて組み込む。
func useMiddleware(ctx context.Context, data initialware.Data) (initialware.Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	logFalse, _ := a.Store.Lookup(store.KeyConfigs+".SERVER.LOG_INDICATOR_FALSE", false).(bool)
	return initialware.UseMiddleware{
		System: Pipeline(a, middleware.WithIndicatorFalseLog(logFalse)),
		Before: []gin.HandlerFunc{middleware.Recovery(), middleware.RequestID(), middleware.RequestLogger()},
	}.Process(ctx, data)
}

// Pipeline は組み込みステージに入力検証と利用者検証を加えたパイプラインを返す。
func Pipeline(a *app.App, opts ...middleware.Option) *middleware.System {
	return middleware.NewSystem(a, opts...).
		Use(middleware.SafeMandatoryKeys()).
		Use(middleware.SafeInputType()).
		Use(middleware.UserExistence(account.Lookup)).
		Use(middleware.UserDatabasePermission(account.Lookup)).
		Use(middleware.UserAPIPermission()).
		Use(middleware.UserStatusCheck(account.Lookup, "", account.StatusBlocked)).
		Use(middleware.JsonifyResponse())
}
