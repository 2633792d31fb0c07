package initialware

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/feliz/pkg/app"
	"github.com/nao1215/feliz/pkg/dbhandler"
	"github.com/nao1215/feliz/pkg/fileutil"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"
)

// ConnConfigs はデータベース種別からエイリアス、接続設定への対応。
type ConnConfigs map[string]map[string]dbhandler.ConnConfig

var (
	connConfigMu    sync.Mutex
	connConfigCache = map[string]response.Envelope{}
)

// LoadConnectionConfigs はINIファイルを読み込み、セクションを種別ごとに振り分ける。
// 結果（失敗を含む）はパスごとにプロセス内で1度だけ計算する。
// 成功時のcontentは ConnConfigs。
func LoadConnectionConfigs(path string) response.Envelope {
	connConfigMu.Lock()
	defer connConfigMu.Unlock()
	if env, ok := connConfigCache[path]; ok {
		return env
	}
	env := parseConnectionConfigs(path)
	connConfigCache[path] = env
	return env
}

func parseConnectionConfigs(path string) response.Envelope {
	env := fileutil.ReadINI(path)
	if !env.Indicator {
		return env
	}
	f, ok := env.Content.(*ini.File)
	if !ok {
		return response.False("INIファイルの内容が不正です", nil)
	}

	configs := ConnConfigs{}
	for _, kind := range store.Kinds() {
		configs[kind] = map[string]dbhandler.ConnConfig{}
	}

	var problems []string
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		kind := sec.Key("db_type").String()
		if _, known := configs[kind]; !known {
			problems = append(problems, fmt.Sprintf("(%s) %s is not a valid db_type.", sec.Name(), kind))
			continue
		}
		cfg, err := dbhandler.ParseSection(sec)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		configs[kind][sec.Name()] = cfg
	}
	if len(problems) > 0 {
		return response.False(strings.Join(problems, " "), nil)
	}
	return response.True("Success", configs)
}

// loadDBConfigs はDB機能が有効な場合に CONFIGS.DB.INI_FILE の接続設定を返す。
func loadDBConfigs(a *app.App, kind string) (map[string]dbhandler.ConnConfig, bool) {
	if !inspector.DBEnabled(a.Store) {
		return nil, false
	}
	iniFile, _ := a.Store.Lookup(store.KeyConfigs+".DB.INI_FILE", "").(string)
	if iniFile == "" {
		log.Warn().Msg("Load INI File Error: CONFIGS.DB.INI_FILE is not set")
		return nil, false
	}
	env := LoadConnectionConfigs(ResolvePath(a.ConfigDir, iniFile))
	if !env.Indicator {
		log.Warn().Msg("Load INI File Error: " + env.Message)
		return nil, false
	}
	configs, _ := env.Content.(ConnConfigs)
	return configs[kind], true
}

// sortedAliases はエイリアスをソートして返す。
func sortedAliases(m map[string]dbhandler.ConnConfig) []string {
	aliases := make([]string, 0, len(m))
	for alias := range m {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// migrator はマイグレーションを適用できるハンドラ。
type migrator interface {
	Migrate(ctx context.Context, fsys fs.FS, dir string) error
}

// PostgresSetup はINIファイルのpostgresセクションごとに接続ハンドラを生成し、
// ストアに登録するステージ。Modelsに指定したスキーマモデルのDDLを実行する。
type PostgresSetup struct {
	// Open は接続ハンドラを生成する。nilの場合は dbhandler.OpenPostgres。
	Open func(cfg dbhandler.ConnConfig) (dbhandler.Relational, error)
	// Models はエイリアスごとのスキーマモデル。
	Models map[string][]dbhandler.SchemaModel
	// Migrations はマイグレーションファイル。nilの場合は適用しない。
	Migrations fs.FS
	// MigrationDir はMigrations内のディレクトリ。
	MigrationDir string
}

// Process は接続ハンドラを登録し、スキーマを初期化する。
func (p PostgresSetup) Process(ctx context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	configs, ok := loadDBConfigs(a, store.Postgres)
	if !ok {
		return data, nil
	}
	open := p.Open
	if open == nil {
		open = func(cfg dbhandler.ConnConfig) (dbhandler.Relational, error) {
			return dbhandler.OpenPostgres(cfg)
		}
	}

	handlers := make(map[string]dbhandler.Relational, len(configs))
	for _, alias := range sortedAliases(configs) {
		h, err := open(configs[alias])
		if err != nil {
			return nil, fmt.Errorf("(%s) 接続ハンドラの生成に失敗: %w", alias, err)
		}
		if err := a.Store.SetDB(store.Postgres, alias, h); err != nil {
			return nil, err
		}
		handlers[alias] = h
	}

	for _, alias := range sortedAliases(configs) {
		h := handlers[alias]
		if p.Migrations != nil {
			m, ok := h.(migrator)
			if !ok {
				return nil, response.Developmentf("(%s) 接続ハンドラはマイグレーションに対応していません: %T", alias, h)
			}
			if err := m.Migrate(ctx, p.Migrations, p.MigrationDir); err != nil {
				return nil, fmt.Errorf("(%s) %w", alias, err)
			}
		}
		models, ok := p.Models[alias]
		if !ok {
			continue
		}
		stmts, err := dbhandler.CollectSQL(models, configs[alias].Username)
		if err != nil {
			return nil, fmt.Errorf("(%s) DDLの生成に失敗: %w", alias, err)
		}
		if err := h.ExecBatch(ctx, stmts); err != nil {
			return nil, fmt.Errorf("(%s) %w", alias, err)
		}
	}
	return data, nil
}

// MongoSetup はINIファイルのmongoセクションごとに接続ハンドラを生成し、
// ストアに登録するステージ。宣言したコレクションには1件だけ問い合わせて接続を確認する。
type MongoSetup struct {
	// Open は接続ハンドラを生成する。nilの場合は dbhandler.OpenMongo。
	Open func(ctx context.Context, cfg dbhandler.ConnConfig, schemas []string) (dbhandler.Handler, error)
	// Models はエイリアスごとのコレクション名。
	Models map[string][]string
}

// Process は接続ハンドラを登録する。
func (m MongoSetup) Process(ctx context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	configs, ok := loadDBConfigs(a, store.Mongo)
	if !ok {
		return data, nil
	}
	open := m.Open
	if open == nil {
		open = func(ctx context.Context, cfg dbhandler.ConnConfig, schemas []string) (dbhandler.Handler, error) {
			return dbhandler.OpenMongo(ctx, cfg, schemas)
		}
	}

	for _, alias := range sortedAliases(configs) {
		schemas := m.Models[alias]
		h, err := open(ctx, configs[alias], schemas)
		if err != nil {
			return nil, fmt.Errorf("(%s) 接続ハンドラの生成に失敗: %w", alias, err)
		}
		if err := a.Store.SetDB(store.Mongo, alias, h); err != nil {
			return nil, err
		}
		for _, schema := range schemas {
			if _, err := h.QueryRecords(ctx, schema, nil, 1); err != nil {
				log.Warn().Err(err).Str("alias", alias).Str("schema", schema).Msg("MongoDBの接続確認に失敗")
			}
		}
	}
	return data, nil
}
