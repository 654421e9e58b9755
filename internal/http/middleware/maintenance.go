package middleware

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// Maintenance refuses new requests, including websocket upgrades, while the
// flag file exists. Connections that are already open are unaffected.
func Maintenance(flagPath string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.URL.Path == "/health" {
			ctx.Next()
			return
		}
		if _, err := os.Stat(flagPath); err == nil {
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "bridge is under maintenance, retry later",
			})
			return
		}
		ctx.Next()
	}
}
