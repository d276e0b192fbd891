package util

import (
	"net/http"
	"net/url"
	"strings"
)

// NewProxyFunc builds a proxy selector for outbound requests. With no
// explicit proxies configured it defers to the standard environment
// variables. noProxy is a comma-separated list of hosts and domain
// suffixes that bypass the proxy; "*" bypasses everything.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	bypass := splitNoProxy(noProxy)

	return func(req *http.Request) (*url.URL, error) {
		if bypassProxy(req.URL.Hostname(), bypass) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func splitNoProxy(noProxy string) []string {
	var out []string
	for _, part := range strings.Split(noProxy, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, strings.TrimPrefix(part, "."))
		}
	}
	return out
}

func bypassProxy(host string, bypass []string) bool {
	host = strings.ToLower(host)
	for _, entry := range bypass {
		if entry == "*" || host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
