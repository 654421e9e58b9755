package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginPolicy decides which browser origins may talk to the bridge. An
// entry ending in "." matches any host with that prefix ("192." covers
// 192.168.0.10); other entries must match the host exactly.
type OriginPolicy struct {
	exact    map[string]bool
	prefixes []string
}

func NewOriginPolicy(hosts []string) *OriginPolicy {
	p := &OriginPolicy{exact: map[string]bool{}}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case strings.HasSuffix(h, "."):
			p.prefixes = append(p.prefixes, h)
		default:
			p.exact[h] = true
		}
	}
	return p
}

func (p *OriginPolicy) Allowed(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if p.exact[host] {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}

// CheckOrigin is the websocket upgrader hook. Requests without an Origin
// header come from non-browser clients and are let through.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.Allowed(origin)
}

// CORS answers preflights and echoes allowed origins with credentials.
func (p *OriginPolicy) CORS() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin != "" && p.Allowed(origin) {
			h := ctx.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if ctx.Request.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", firstNonEmpty(ctx.GetHeader("Access-Control-Request-Headers"), "Content-Type"))
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		ctx.Next()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
