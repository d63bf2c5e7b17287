package server

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"go.uber.org/zap"
)

// IPExtractor trusts X-Forwarded-For only when the request arrives from one of the given
// proxies (addresses or CIDR ranges). With no usable proxy the peer address is used as is.
func IPExtractor(trustedProxies []string, logger *logging.Service) echo.IPExtractor {
	trustOptions := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}

	ranges := 0
	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		ipNet, err := parseProxy(proxy)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy), zap.Error(err))
			continue
		}
		trustOptions = append(trustOptions, echo.TrustIPRange(ipNet))
		ranges++
	}

	if ranges == 0 {
		return echo.ExtractIPDirect()
	}
	return echo.ExtractIPFromXFFHeader(trustOptions...)
}

func configureTrustedProxies(e *echo.Echo, trustedProxies []string, logger *logging.Service) {
	e.IPExtractor = IPExtractor(trustedProxies, logger)
}

func parseProxy(proxy string) (*net.IPNet, error) {
	if strings.Contains(proxy, "/") {
		_, ipNet, err := net.ParseCIDR(proxy)
		return ipNet, err
	}
	ip := net.ParseIP(proxy)
	if ip == nil {
		return nil, &net.ParseError{Type: "IP address", Text: proxy}
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// ClientIP is the caller's address as seen through the configured proxies. An echo instance
// without an IPExtractor never trusts forwarding headers.
func ClientIP(c echo.Context) string {
	if c.Echo().IPExtractor == nil {
		return echo.ExtractIPDirect()(c.Request())
	}
	return c.RealIP()
}
