package gateway

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy is a normalized allow-list of scheme://host origins.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string, log *zap.Logger) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			p.allowAll = true
			continue
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			log.Warn("ignoring invalid allowed origin", zap.String("origin", o))
			continue
		}
		p.allowed[n] = struct{}{}
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// allows reports whether r may upgrade. Requests without an Origin header
// come from non-browser clients and are allowed; browsers always send one.
func (p originPolicy) allows(r *http.Request) bool {
	h := r.Header.Get("Origin")
	if h == "" || p.allowAll {
		return true
	}
	n, ok := normalizeOrigin(h)
	if !ok {
		return false
	}
	_, found := p.allowed[n]
	return found
}
