package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

type SecurityHeadersMiddleware struct {
	secure *secure.Secure
}

func NewSecurityHeadersMiddleware(isProduction bool) *SecurityHeadersMiddleware {
	options := secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		IsDevelopment:         !isProduction,
	}
	if isProduction {
		options.STSSeconds = 31536000
		options.STSIncludeSubdomains = true
		options.SSLProxyHeaders = map[string]string{"X-Forwarded-Proto": "https"}
	}
	return &SecurityHeadersMiddleware{secure: secure.New(options)}
}

func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return m.secure.Handler(next)
}
