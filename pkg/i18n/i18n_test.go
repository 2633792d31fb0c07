package i18n

import (
	"testing"

	"github.com/nao1215/feliz/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	require.NoError(t, s.SetConfig("I18N", map[string]any{
		"greeting": map[string]any{"en": "Hello", "ja": "こんにちは", "zh-TW": "你好"},
		"farewell": map[string]any{"fr": "Au revoir", "de": "Tschüss"},
	}))
	return s
}

// TestLookup は翻訳の選択を検証する。
func TestLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		accept string
		want   string
		found  bool
	}{
		{name: "完全一致", key: "greeting", accept: "ja", want: "こんにちは", found: true},
		{name: "優先順位に従うこと", key: "greeting", accept: "fr;q=0.9, ja;q=0.8, en;q=0.5", want: "こんにちは", found: true},
		{name: "地域付きの言語", key: "greeting", accept: "zh-TW", want: "你好", found: true},
		{name: "一致しない場合は英語", key: "greeting", accept: "ko", want: "Hello", found: true},
		{name: "ヘッダーがない場合は英語", key: "greeting", accept: "", want: "Hello", found: true},
		{name: "英語もない場合は言語名順で最初", key: "farewell", accept: "", want: "Tschüss", found: true},
		{name: "キーがない場合はキーを返すこと", key: "missing", accept: "ja", want: "missing", found: false},
	}
	s := newStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, found := Lookup(s, tt.key, tt.accept)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.found, found)
		})
	}

	t.Run("翻訳表がない場合", func(t *testing.T) {
		t.Parallel()

		got, found := Lookup(store.New(), "greeting", "ja")
		assert.Equal(t, "greeting", got)
		assert.False(t, found)
	})
}
