// Copyright 2024-2026 Aiku AI

package bot

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpproxy"
)

// proxySettings is the websocket proxy configuration read from http_proxy and no_proxy.
type proxySettings struct {
	Host    string
	Port    string
	NoProxy string
}

// readProxySettings reads http_proxy (an optional http:// prefix followed by
// host:port) and no_proxy through lookup, which is normally os.LookupEnv.
func readProxySettings(lookup func(string) (string, bool)) (proxySettings, error) {
	var ps proxySettings
	if raw, ok := lookup("http_proxy"); ok && raw != "" {
		hostport := strings.TrimSuffix(strings.TrimPrefix(raw, "http://"), "/")
		host, port, found := strings.Cut(hostport, ":")
		if !found || host == "" {
			return ps, fmt.Errorf("invalid http_proxy %q: expected host:port", raw)
		}
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return ps, fmt.Errorf("invalid http_proxy port %q: %w", port, err)
		}
		ps.Host, ps.Port = host, port
	}
	if noProxy, ok := lookup("no_proxy"); ok {
		ps.NoProxy = noProxy
	}
	return ps, nil
}

// ProxyFunc returns a proxy selector for the websocket dialer, or nil when no
// proxy is configured. The proxy is used for both ws and wss URLs; no_proxy
// matching follows the usual conventions.
func (ps proxySettings) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if ps.Host == "" {
		return nil
	}
	proxy := "http://" + net.JoinHostPort(ps.Host, ps.Port)
	cfg := &httpproxy.Config{
		HTTPProxy:  proxy,
		HTTPSProxy: proxy,
		NoProxy:    ps.NoProxy,
	}
	fn := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}
