package store

import "fmt"

// Config は CONFIGS 配下の値を返す。
func (s *Store) Config(key string, def any) (any, error) {
	if key == "" {
		return s.Get(KeyConfigs, def)
	}
	return s.Get(KeyConfigs+"."+key, def)
}

// SetConfig は CONFIGS 配下に値を設定する。
func (s *Store) SetConfig(key string, value any) error {
	return s.Set(KeyConfigs+"."+key, value)
}

// Configs は CONFIGS 全体を返す。未ロードまたはマッピングでなければ空のマップを返す。
func (s *Store) Configs() map[string]any {
	if m, ok := s.Lookup(KeyConfigs, nil).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Section は CONFIGS 直下のセクションをマッピングとして返す。
func (s *Store) Section(name string) (map[string]any, bool) {
	m, ok := s.Lookup(KeyConfigs+"."+name, nil).(map[string]any)
	return m, ok
}

// SetDB はデータベース種別とエイリアスに接続ハンドラを登録する。
func (s *Store) SetDB(kind, alias string, handler any) error {
	if kind == "" || alias == "" {
		return fmt.Errorf("%w: kind=%q alias=%q", ErrEmptySegment, kind, alias)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.data[KeyDB].(map[string]any)
	if !ok {
		db = map[string]any{}
		s.data[KeyDB] = db
	}
	byKind, ok := db[kind].(map[string]any)
	if !ok {
		byKind = map[string]any{}
		db[kind] = byKind
	}
	byKind[alias] = handler
	return nil
}

// DB は登録済みの接続ハンドラを返す。
func (s *Store) DB(kind, alias string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, ok := s.data[KeyDB].(map[string]any)
	if !ok {
		return nil, false
	}
	byKind, ok := db[kind].(map[string]any)
	if !ok {
		return nil, false
	}
	h, ok := byKind[alias]
	return h, ok
}

// DeleteDB は接続ハンドラの登録を解除する。
func (s *Store) DeleteDB(kind, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, _ := s.data[KeyDB].(map[string]any)
	byKind, _ := db[kind].(map[string]any)
	if _, ok := byKind[alias]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrMissingKey, kind, alias)
	}
	delete(byKind, alias)
	return nil
}

// Handlers は登録済みの全接続ハンドラを種別ごとのスライスで返す。
func (s *Store) Handlers() []any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []any
	db, _ := s.data[KeyDB].(map[string]any)
	for _, kind := range Kinds() {
		byKind, _ := db[kind].(map[string]any)
		for _, h := range byKind {
			out = append(out, h)
		}
	}
	return out
}
