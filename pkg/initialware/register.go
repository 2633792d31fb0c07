package initialware

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/pkg/api"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/middleware"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
)

// UseMiddleware はミドルウェアパイプラインと周辺のGinミドルウェアを組み込むステージ。
// ルートより先に組み込む必要があるため、RegisterAPIs より前に置く。
type UseMiddleware struct {
	// System はミドルウェアパイプライン。
	System *middleware.System
	// Before はパイプラインより前に組み込むGinミドルウェア。
	Before []gin.HandlerFunc
}

// Process はミドルウェアを組み込む。
func (u UseMiddleware) Process(_ context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	if u.System == nil {
		return nil, response.NewDevelopmentError("UseMiddleware に System を設定してください")
	}
	if len(u.Before) > 0 {
		a.Engine.Use(u.Before...)
	}
	a.Engine.Use(u.System.Handler())
	return data, nil
}

// DefaultModuleSuffix はAPI名からモジュール名を作る接尾辞。
const DefaultModuleSuffix = "_api"

// DefaultGroupSuffix はAPI名からグループ名を作る接尾辞。
const DefaultGroupSuffix = "Api"

// RegisterAPIs はAPI設定に挙がったAPIのグループを登録するステージ。
// API名 name に対して、モジュール {name}{ModuleSuffix} のシンボル {name}{GroupSuffix} を
// Registry から引き、/api/{グループ名} 配下に登録する。
type RegisterAPIs struct {
	// Registry はグループの登録簿。nilの場合は api.DefaultRegistry。
	Registry *api.Registry
	// ModuleSuffix はモジュール名の接尾辞。空の場合は DefaultModuleSuffix。
	ModuleSuffix string
	// GroupSuffix はシンボル名の接尾辞。空の場合は DefaultGroupSuffix。
	GroupSuffix string
	// Disabled は登録しないAPI名。
	Disabled []string
}

// Process はグループを登録する。API機能が無効な場合は何もしない。
// 登録後は Registry への追加を禁止する。
func (r RegisterAPIs) Process(_ context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	if !inspector.APIEnabled(a.Store) {
		return data, nil
	}

	registry := r.Registry
	if registry == nil {
		registry = api.DefaultRegistry
	}
	moduleSuffix := r.ModuleSuffix
	if moduleSuffix == "" {
		moduleSuffix = DefaultModuleSuffix
	}
	groupSuffix := r.GroupSuffix
	if groupSuffix == "" {
		groupSuffix = DefaultGroupSuffix
	}

	apis, _ := a.Store.Lookup(store.KeyAPI, nil).(map[string]any)
	names := make([]string, 0, len(apis))
	for name := range apis {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if slices.Contains(r.Disabled, name) {
			continue
		}
		module := name + moduleSuffix
		if !registry.HasModule(module) {
			return nil, fmt.Errorf("APIモジュール %s が登録されていません", module)
		}
		factory, ok := registry.Lookup(module, name+groupSuffix)
		if !ok {
			return nil, fmt.Errorf("APIモジュール %s に %s%s がありません", module, name, groupSuffix)
		}
		g := factory()
		api.Mount(a.Engine, g)
		log.Debug().Str("api", name).Str("prefix", g.Prefix()).Msg("APIを登録")
	}
	registry.Lock()
	return data, nil
}
