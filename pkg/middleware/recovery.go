package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/rs/zerolog/log"
)

// Recovery はパニックから回復し、失敗エンベロープを返すGinミドルウェアを返す。
// パニックの内容は DevelopmentError としてログに出力される。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error().
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Interface("panic", r).
				Msg("パニックから回復")

			env := response.ErrorHandler(response.NewDevelopmentError(fmt.Sprint(r)), false)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusOK, env)
		}()
		c.Next()
	}
}
