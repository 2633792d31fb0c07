package response

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

// Location はエラーが生成された呼び出し元の位置。
type Location struct {
	// File はソースファイルのパス。
	File string
	// Line は行番号。
	Line int
	// Function は関数名。
	Function string
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d (%s)", l.File, l.Line, l.Function)
}

// callerLocation はskip段上の呼び出し元を返す。
func callerLocation(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{}
	}
	loc := Location{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

// IndicatorFalseError は業務ルール上の失敗を表す。
// ハンドラやミドルウェアがこのエラーを返すと、ErrorHandler により
// {"indicator": false} のエンベロープへ変換される。
type IndicatorFalseError struct {
	// Message はクライアントに返すメッセージ。
	Message string
	// Content は失敗時に返す追加データ。
	Content any
	// PrintLog はログ出力の上書き設定。nilの場合はErrorHandlerの設定に従う。
	PrintLog *bool
	// Location は生成位置。
	Location Location

	stack error
}

// FailOption は Fail のオプション。
type FailOption func(*IndicatorFalseError)

// WithContent は失敗エンベロープのcontentを設定する。
func WithContent(content any) FailOption {
	return func(e *IndicatorFalseError) {
		e.Content = content
	}
}

// WithLog はログ出力の有無を明示する。
func WithLog(printLog bool) FailOption {
	return func(e *IndicatorFalseError) {
		e.PrintLog = &printLog
	}
}

// Fail は業務上の失敗を表すエラーを生成する。
func Fail(message string, opts ...FailOption) *IndicatorFalseError {
	e := &IndicatorFalseError{
		Message:  message,
		Location: callerLocation(1),
		stack:    errors.New(message),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Failf はフォーマット付きの Fail。
func Failf(format string, args ...any) *IndicatorFalseError {
	msg := fmt.Sprintf(format, args...)
	e := &IndicatorFalseError{
		Message:  msg,
		Location: callerLocation(1),
		stack:    errors.New(msg),
	}
	return e
}

func (e *IndicatorFalseError) Error() string {
	return e.Message
}

// Envelope は失敗エンベロープを返す。
func (e *IndicatorFalseError) Envelope() Envelope {
	return False(e.Message, e.Content)
}

// StackTrace はpkg/errorsのスタックトレースを返す。
func (e *IndicatorFalseError) StackTrace() errors.StackTrace {
	if st, ok := e.stack.(interface{ StackTrace() errors.StackTrace }); ok {
		return st.StackTrace()
	}
	return nil
}

// DevelopmentError は実装者による設定・利用方法の誤りを表す。
// 開発中に確実に気付けるよう、ErrorHandlerは常にエラーレベルでログを出す。
type DevelopmentError struct {
	// Message はエラー内容。
	Message string
	// Location は生成位置。
	Location Location

	stack error
}

// NewDevelopmentError は DevelopmentError を生成する。
func NewDevelopmentError(message string) *DevelopmentError {
	return &DevelopmentError{
		Message:  message,
		Location: callerLocation(1),
		stack:    errors.New(message),
	}
}

// Developmentf はフォーマット付きの NewDevelopmentError。
func Developmentf(format string, args ...any) *DevelopmentError {
	msg := fmt.Sprintf(format, args...)
	return &DevelopmentError{
		Message:  msg,
		Location: callerLocation(1),
		stack:    errors.New(msg),
	}
}

func (e *DevelopmentError) Error() string {
	return e.Message
}

// StackTrace はpkg/errorsのスタックトレースを返す。
func (e *DevelopmentError) StackTrace() errors.StackTrace {
	if st, ok := e.stack.(interface{ StackTrace() errors.StackTrace }); ok {
		return st.StackTrace()
	}
	return nil
}
