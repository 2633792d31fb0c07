package api

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRegistryLocked は適用済みの Registry に登録しようとした場合のエラー。
var ErrRegistryLocked = errors.New("APIレジストリは適用済みのため登録できません")

// GroupFactory はグループを生成する関数。
type GroupFactory func() *Group

// Registry はモジュール名とシンボル名からグループの生成関数を引く登録簿。
type Registry struct {
	mu      sync.RWMutex
	modules map[string]map[string]GroupFactory
	locked  bool
}

// NewRegistry は空の Registry を生成する。
func NewRegistry() *Registry {
	return &Registry{modules: map[string]map[string]GroupFactory{}}
}

// DefaultRegistry はパッケージの init から登録するための既定の Registry。
var DefaultRegistry = NewRegistry()

// Provide はモジュールにグループの生成関数を登録する。
func (r *Registry) Provide(module, symbol string, factory GroupFactory) error {
	if factory == nil {
		return fmt.Errorf("%s.%s の生成関数がnilです", module, symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return fmt.Errorf("%w: %s.%s", ErrRegistryLocked, module, symbol)
	}
	symbols, ok := r.modules[module]
	if !ok {
		symbols = map[string]GroupFactory{}
		r.modules[module] = symbols
	}
	symbols[symbol] = factory
	return nil
}

// MustProvide は失敗時にパニックする Provide。init からの登録に使う。
func (r *Registry) MustProvide(module, symbol string, factory GroupFactory) {
	if err := r.Provide(module, symbol, factory); err != nil {
		panic(err)
	}
}

// Provide は DefaultRegistry に登録する。
func Provide(module, symbol string, factory GroupFactory) {
	DefaultRegistry.MustProvide(module, symbol, factory)
}

// HasModule はモジュールが登録されているかを返す。
func (r *Registry) HasModule(module string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[module]
	return ok
}

// Lookup はモジュールとシンボルから生成関数を引く。
func (r *Registry) Lookup(module, symbol string) (GroupFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.modules[module][symbol]
	return f, ok
}

// Lock は以降の登録を禁止する。
func (r *Registry) Lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

// Locked は登録が禁止されているかを返す。
func (r *Registry) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}
