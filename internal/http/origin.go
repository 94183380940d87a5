package http

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy limits the operator API to the console's own loopback address
// and the origins listed in CONSOLE_ALLOWED_ORIGINS.
type originPolicy struct {
	origins map[string]struct{}
	hosts   map[string]struct{}
}

func newOriginPolicy(consoleHost string, allowed []string) *originPolicy {
	p := &originPolicy{
		origins: make(map[string]struct{}),
		hosts:   make(map[string]struct{}),
	}
	if h := strings.ToLower(consoleHost); h != "" && !isUnspecified(h) {
		p.hosts[h] = struct{}{}
	}
	for _, origin := range allowed {
		u, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || u.Host == "" {
			continue
		}
		p.origins[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
		p.hosts[strings.ToLower(u.Hostname())] = struct{}{}
	}
	return p
}

// allowHost rejects requests addressed to a name the console does not serve,
// which is what a DNS-rebound page would send.
func (p *originPolicy) allowHost(r *http.Request) bool {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if isLoopback(host) {
		return true
	}
	_, ok := p.hosts[host]
	return ok
}

// allowOrigin accepts requests without an Origin header, same-host requests,
// and listed origins.
func (p *originPolicy) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if _, ok := p.origins[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
		return true
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (p *originPolicy) allow(r *http.Request) bool {
	return p.allowHost(r) && p.allowOrigin(r)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isUnspecified(host string) bool {
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsUnspecified()
}
