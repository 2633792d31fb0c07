// Package i18n は CONFIGS.I18N に読み込んだ翻訳表からメッセージを引く。
//
// 翻訳表は {"key": {"en": "...", "ja": "..."}} の形式で、
// 言語はAccept-Languageヘッダーの優先順位に従って選ぶ。
package i18n

import (
	"sort"

	"github.com/nao1215/feliz/pkg/store"
	"golang.org/x/text/language"
)

// FallbackLanguage は一致する言語がない場合に使う言語。
const FallbackLanguage = "en"

// Lookup はkeyの翻訳をacceptLanguageに最も合う言語で返す。
// 一致する言語がない場合は FallbackLanguage、それもなければ言語名順で最初の翻訳を返す。
// keyが翻訳表にない場合はkeyそのものとfalseを返す。
func Lookup(s *store.Store, key, acceptLanguage string) (string, bool) {
	entries, ok := s.Lookup(store.KeyConfigs+".I18N", nil).(map[string]any)
	if !ok {
		return key, false
	}
	translations, ok := entries[key].(map[string]any)
	if !ok || len(translations) == 0 {
		return key, false
	}

	langs := make([]string, 0, len(translations))
	for lang := range translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	lang := match(langs, acceptLanguage)
	text, ok := translations[lang].(string)
	if !ok {
		return key, false
	}
	return text, true
}

// match はAccept-Languageに最も合う言語を返す。
func match(langs []string, acceptLanguage string) string {
	tags := make([]language.Tag, 0, len(langs))
	names := make([]string, 0, len(langs))
	for _, l := range langs {
		tag, err := language.Parse(l)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		names = append(names, l)
	}

	if len(tags) > 0 && acceptLanguage != "" {
		if desired, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(desired) > 0 {
			_, index, confidence := language.NewMatcher(tags).Match(desired...)
			if confidence != language.No {
				return names[index]
			}
		}
	}

	for _, l := range langs {
		if l == FallbackLanguage {
			return l
		}
	}
	return langs[0]
}
