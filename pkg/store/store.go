// Package store はプロセス全体で共有する設定ストアを提供する。
//
// ストアはトップレベルに CONFIGS / DB / API などのサブツリーを持つ入れ子のマップで、
// ドット区切りのキー（"a.b.c"）で値を参照する。起動時にinitialwareが書き込み、
// リクエスト処理中はミドルウェアと検査関数が読み出す。
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/feliz/pkg/fileutil"
	"github.com/nao1215/feliz/pkg/response"
)

// トップレベルのキー。
const (
	// KeyInit はinitialware実行時の補助データ用の領域。
	KeyInit = "INIT"
	// KeyConfigs はサーバー設定の領域。
	KeyConfigs = "CONFIGS"
	// KeyDB はデータベース接続ハンドラの領域。種別→エイリアス→ハンドラの順に入れ子になる。
	KeyDB = "DB"
	// KeyAPI はAPIルート設定の領域。
	KeyAPI = "API"
)

// サポートするデータベース種別。
const (
	// Mongo はドキュメントストア。
	Mongo = "mongo"
	// Postgres はリレーショナルデータベース。
	Postgres = "postgres"
)

var (
	// ErrEmptySegment はドット区切りキーに空のセグメントが含まれることを表す。
	ErrEmptySegment = errors.New("dotted key contains an empty segment")
	// ErrNotMapping は値がマッピングではないことを表す。
	ErrNotMapping = errors.New("value is not a mapping")
	// ErrMissingKey は削除対象のキーが存在しないことを表す。
	ErrMissingKey = errors.New("key does not exist")
)

// Kinds はサポートするデータベース種別の一覧を返す。
func Kinds() []string {
	return []string{Mongo, Postgres}
}

// splitKey はドット区切りキーを分割する。空文字列はnilを返す。
func splitKey(key string) ([]string, error) {
	if key == "" {
		return nil, nil
	}
	segments := strings.Split(key, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptySegment, key)
		}
	}
	return segments, nil
}

// GetDict はマッピングmからドット区切りキーの値を取り出す。
// keyが空文字列ならm自身を返し、途中のセグメントが存在しなければdefを返す。
// mがマッピングでない場合は ErrNotMapping、空のセグメントがある場合は ErrEmptySegment を返す。
func GetDict(m any, key string, def any) (any, error) {
	current, ok := m.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotMapping, m)
	}
	segments, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return current, nil
	}

	var value any = current
	for _, s := range segments {
		node, ok := value.(map[string]any)
		if !ok {
			return def, nil
		}
		v, exists := node[s]
		if !exists {
			return def, nil
		}
		value = v
	}
	return value, nil
}

// Store はプロセス全体で共有する設定ストア。
// 書き込みは主に起動時に行われるが、並行アクセスに備えてミューテックスで保護する。
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// New は空のストアを生成する。
func New() *Store {
	return &Store{data: map[string]any{}}
}

// Get はドット区切りキーの値を返す。存在しなければdefを返す。
func (s *Store) Get(key string, def any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key == "" {
		return s.snapshotLocked(), nil
	}
	return GetDict(s.data, key, def)
}

// Lookup は Get のエラーをdefに畳み込む版。検査関数など失敗してはならない箇所で使う。
func (s *Store) Lookup(key string, def any) any {
	v, err := s.Get(key, def)
	if err != nil {
		return def
	}
	return v
}

// Set はドット区切りキーに値を設定する。途中のマッピングが無ければ作成する。
func (s *Store) Set(key string, value any) error {
	segments, err := splitKey(key)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptySegment, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.data
	for _, seg := range segments[:len(segments)-1] {
		next, exists := node[seg]
		if !exists || next == nil {
			child := map[string]any{}
			node[seg] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q", ErrNotMapping, seg)
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
	return nil
}

// Delete はトップレベルのキーを削除する。
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	delete(s.data, key)
	return nil
}

// Len はトップレベルのキー数を返す。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys はトップレベルのキーをソートして返す。
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot はトップレベルのエントリを浅くコピーしたマップを返す。
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() map[string]any {
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// LoadYAML はYAMLファイルを読み込み、トップレベルのkeyに格納する。
// 読み込みに失敗した場合はストアを変更せず、失敗エンベロープを返す。
func (s *Store) LoadYAML(key, path string) response.Envelope {
	env := fileutil.ReadYAML(path)
	if !env.Indicator {
		return env
	}
	if err := s.Set(key, env.Content); err != nil {
		return response.False(err.Error(), nil)
	}
	return env
}
