package handler

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

const unknownClient = "unknown"

// ClientIP returns the throttle key of the caller. When the Echo instance has
// an IPExtractor (trusted proxies configured) its answer is used. Otherwise
// it is the first X-Forwarded-For hop, then CF-Connecting-IP, then
// X-Real-IP, then the socket address.
func ClientIP(c echo.Context) string {
	if c.Echo().IPExtractor != nil {
		if ip := c.RealIP(); ip != "" {
			return ip
		}
		return unknownClient
	}

	req := c.Request()

	if fwd := req.Header.Get(echo.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(req.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(req.Header.Get(echo.HeaderXRealIP)); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil && host != "" {
		return host
	}
	if req.RemoteAddr != "" {
		return req.RemoteAddr
	}
	return unknownClient
}
