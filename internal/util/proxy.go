package util

import (
	"fmt"
	"net/http"
	"net/url"
)

// ProxyFunc returns an http.Transport proxy selector. Empty settings defer to the environment.
func ProxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment, nil
	}
	parse := func(raw string) (*url.URL, error) {
		if raw == "" {
			return nil, nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		return u, nil
	}
	plain, err := parse(httpProxy)
	if err != nil {
		return nil, err
	}
	secure, err := parse(httpsProxy)
	if err != nil {
		return nil, err
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && secure != nil {
			return secure, nil
		}
		if plain != nil {
			return plain, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}

// Transport builds an http.Transport honoring the configured proxies
func Transport(httpProxy, httpsProxy string) (*http.Transport, error) {
	proxy, err := ProxyFunc(httpProxy, httpsProxy)
	if err != nil {
		return nil, err
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = proxy
	return t, nil
}
