package response

import (
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrorHandler はエラーをレスポンスエンベロープへ変換する唯一の変換点。
//
// IndicatorFalseError はPrintLogがtrue、またはPrintLogが未指定かつ
// logIndicatorFalseがtrueの場合のみログを出す。自身のエンベロープを持つ
// その他のエラー（JWT検証失敗など）はログを出さない。DevelopmentErrorと
// 未分類のエラーは常にログを出す。
func ErrorHandler(err error, logIndicatorFalse bool) Envelope {
	if err == nil {
		return True("", nil)
	}

	var falseErr *IndicatorFalseError
	if stderrors.As(err, &falseErr) {
		if shouldLog(falseErr.PrintLog, logIndicatorFalse) {
			log.Warn().
				Str("location", falseErr.Location.String()).
				Str("stack", fmt.Sprintf("%+v", falseErr.StackTrace())).
				Msg("Server API Indicator False: " + falseErr.Message)
		}
		return falseErr.Envelope()
	}

	var devErr *DevelopmentError
	if stderrors.As(err, &devErr) {
		log.Error().
			Str("location", devErr.Location.String()).
			Str("stack", fmt.Sprintf("%+v", devErr.StackTrace())).
			Msg("DevelopmentError: " + devErr.Message)
		return False(devErr.Message, nil)
	}

	var enveloper Enveloper
	if stderrors.As(err, &enveloper) {
		return enveloper.Envelope()
	}

	log.Warn().Str("stack", fmt.Sprintf("%+v", err)).Msg("Server API Error: " + err.Error())
	return False(err.Error(), nil)
}

func shouldLog(printLog *bool, logIndicatorFalse bool) bool {
	if printLog != nil {
		return *printLog
	}
	return logIndicatorFalse
}
