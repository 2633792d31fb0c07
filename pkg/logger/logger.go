// Package logger はzerologのグローバルロガーを設定する。
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Setup はグローバルロガーを設定する。
// prettyがtrueなら人が読むための形式、falseならJSONで標準エラー出力に書き出す。
// levelが解釈できない場合はinfoを使う。
func Setup(level string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return SetupWriter(w, level)
}

// SetupWriter は出力先を指定して Setup する。
func SetupWriter(w io.Writer, level string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	l := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = l
	return l
}
