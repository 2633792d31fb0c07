package initialware

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/jwtauth"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
)

// timeDeltaUnits は EXPIRE_TIME_DELTA で使える単位。
var timeDeltaUnits = map[string]time.Duration{
	"weeks":        7 * 24 * time.Hour,
	"days":         24 * time.Hour,
	"hours":        time.Hour,
	"minutes":      time.Minute,
	"seconds":      time.Second,
	"milliseconds": time.Millisecond,
	"microseconds": time.Microsecond,
}

// JWTSetup はCONFIGS.JWTからアクセストークンの管理を構成するステージ。
//
// 使用する設定:
//   - JWT_SECRET_KEY: 署名鍵（必須）
//   - ETERNAL_JWT_TOKEN: trueなら有効期限なし
//   - EXPIRE_TIME_DELTA: {weeks, days, hours, minutes, seconds} の組み合わせ
//   - EXPIRE_HOURS: EXPIRE_TIME_DELTA がない場合の有効時間
//   - MESSAGE: UNAUTHORIZED, INVALID_TOKEN, REVOKED_TOKEN, EXPIRED_TOKEN の応答文
//   - PRINT_LOG: 不正なトークンをログに出すかどうか
//   - REDIS_URL: 失効済みトークンをRedisで管理する場合の接続先
//
// 算出した有効期限は CONFIGS.JWT.JWT_ACCESS_TOKEN_EXPIRES に書き戻す。
type JWTSetup struct {
	// Blocklist は失効済みトークンの記録先。nilの場合、REDIS_URLがあればRedis、なければメモリを使う。
	Blocklist jwtauth.Blocklist
}

// Process はJWT機能が有効な場合にマネージャを生成する。
func (j JWTSetup) Process(_ context.Context, data Data) (Data, error) {
	a, err := data.App()
	if err != nil {
		return nil, err
	}
	if !inspector.JWTEnabled(a.Store) {
		return data, nil
	}
	conf, _ := a.Store.Section("JWT")

	secret, _ := conf["JWT_SECRET_KEY"].(string)
	if secret == "" {
		return nil, response.NewDevelopmentError("JWT_ENABLE が true の場合は JWT_SECRET_KEY を設定してください")
	}

	expiry, err := jwtExpiry(conf)
	if err != nil {
		return nil, err
	}
	var expires any = false
	if expiry > 0 {
		expires = expiry.String()
	}
	if err := a.Store.SetConfig("JWT.JWT_ACCESS_TOKEN_EXPIRES", expires); err != nil {
		return nil, fmt.Errorf("JWT有効期限の書き戻しに失敗: %w", err)
	}

	msgs := jwtauth.DefaultMessages()
	if raw, ok := conf["MESSAGE"].(map[string]any); ok {
		if err := mapstructure.Decode(raw, &msgs); err != nil {
			return nil, response.Developmentf("JWT.MESSAGE の形式が不正です: %v", err)
		}
	}
	printLog, _ := conf["PRINT_LOG"].(bool)

	blocklist := j.Blocklist
	if blocklist == nil {
		if url, _ := conf["REDIS_URL"].(string); url != "" {
			rb, err := jwtauth.OpenRedisBlocklist(url, "")
			if err != nil {
				return nil, err
			}
			a.AddCloser(rb)
			blocklist = rb
		} else {
			blocklist = jwtauth.NewMemoryBlocklist()
		}
	}

	m, err := jwtauth.NewManager(secret,
		jwtauth.WithExpiry(expiry),
		jwtauth.WithMessages(msgs),
		jwtauth.WithPrintLog(printLog),
		jwtauth.WithBlocklist(blocklist),
	)
	if err != nil {
		return nil, err
	}
	a.JWT = m
	log.Debug().Interface("expires", expires).Msg("JWTを初期化")
	return data, nil
}

// jwtExpiry は設定から有効期間を求める。0は期限なしを表す。
func jwtExpiry(conf map[string]any) (time.Duration, error) {
	if eternal, _ := conf["ETERNAL_JWT_TOKEN"].(bool); eternal {
		return 0, nil
	}
	if delta, ok := conf["EXPIRE_TIME_DELTA"].(map[string]any); ok {
		var total time.Duration
		for unit, v := range delta {
			scale, ok := timeDeltaUnits[unit]
			if !ok {
				return 0, response.Developmentf("EXPIRE_TIME_DELTA の単位 %q は使えません", unit)
			}
			n, ok := number(v)
			if !ok {
				return 0, response.Developmentf("EXPIRE_TIME_DELTA.%s は数値である必要があります: %v", unit, v)
			}
			total += time.Duration(n * float64(scale))
		}
		if total <= 0 {
			return 0, response.NewDevelopmentError("EXPIRE_TIME_DELTA は正の期間である必要があります")
		}
		return total, nil
	}
	if v, ok := conf["EXPIRE_HOURS"]; ok {
		n, ok := number(v)
		if !ok || n <= 0 {
			return 0, response.Developmentf("EXPIRE_HOURS は正の数値である必要があります: %v", v)
		}
		return time.Duration(n * float64(time.Hour)), nil
	}
	return 0, response.Developmentf("%s.JWT に EXPIRE_TIME_DELTA か EXPIRE_HOURS を設定してください", store.KeyConfigs)
}

// number は設定値を数値として読む。
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
