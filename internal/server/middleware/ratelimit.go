package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/agentstation/mirrorsync/pkg/errors"
)

// RateLimiter keeps a token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    time.Duration // one token per interval
	burst    int
	trusted  []netip.Prefix
	now      func() time.Time
	logger   *zerolog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitConfig configures NewRateLimiter.
type RateLimitConfig struct {
	// PerMinute is the sustained rate and the burst size.
	PerMinute int
	// TrustedProxies lists peer addresses or CIDRs whose X-Forwarded-For
	// header is honored. Other peers are keyed on their socket address.
	TrustedProxies []string
}

// NewRateLimiter creates a limiter from cfg. Stale entries are swept until
// ctx is done.
func NewRateLimiter(ctx context.Context, cfg RateLimitConfig, logger *zerolog.Logger) (*RateLimiter, error) {
	trusted, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	limit := max(cfg.PerMinute, 1)
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		every:    time.Minute / time.Duration(limit),
		burst:    limit,
		trusted:  trusted,
		now:      time.Now,
		logger:   logger,
	}
	go rl.cleanup(ctx)
	return rl, nil
}

// ParseTrustedProxies parses addresses and CIDRs into prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, errors.NewValidationError("trusted_proxies", e, err.Error())
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, errors.NewValidationError("trusted_proxies", e, err.Error())
		}
		prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
	}
	return prefixes, nil
}

// cleanup removes visitors idle for three minutes, every minute.
func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for addr, v := range rl.visitors {
				if rl.now().Sub(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, addr)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow takes a token for addr.
func (rl *RateLimiter) allow(addr string) bool {
	now := rl.now()

	rl.mu.Lock()
	v, ok := rl.visitors[addr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
		rl.visitors[addr] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// retryAfter is the wait for one token, in whole seconds.
func (rl *RateLimiter) retryAfter() string {
	secs := int((rl.every + time.Second - 1) / time.Second)
	return strconv.Itoa(max(secs, 1))
}

// RateLimit middleware limits requests per client address.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := rl.clientAddr(r)
			if !rl.allow(addr) {
				rl.logger.Warn().
					Str("addr", addr).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", rl.retryAfter())
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded",
					"Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr is the peer host, or the nearest untrusted X-Forwarded-For hop
// when the peer is a trusted proxy.
func (rl *RateLimiter) clientAddr(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if !rl.isTrusted(host) {
		return host
	}

	fwd := r.Header.Values("X-Forwarded-For")
	hops := strings.Split(strings.Join(fwd, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !rl.isTrusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (rl *RateLimiter) isTrusted(host string) bool {
	if len(rl.trusted) == 0 {
		return false
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range rl.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
