package gateway

import (
	"time"

	"github.com/jibsandbox/jib-gateway/internal/denylist"
	"github.com/jibsandbox/jib-gateway/internal/ratelimit"
	"github.com/jibsandbox/jib-gateway/internal/repomode"
)

// Reloadable is the subset of configuration applied without restart.
type Reloadable struct {
	Mode       repomode.Mode
	ReadTTL    time.Duration
	WriteTTL   time.Duration
	RateLimits ratelimit.Config
	Denylist   []denylist.Rule
}

// DenylistOwner exposes the denylist of an Executor for reload.
type DenylistOwner interface {
	Denylist() *denylist.Denylist
}

// Apply swaps in r. Caches and rate-limit history are kept.
func (g *Gateway) Apply(r Reloadable) {
	g.mode.SetMode(r.Mode)
	if g.visibility != nil {
		g.visibility.SetTTLs(r.ReadTTL, r.WriteTTL)
	}
	if g.limiter != nil {
		g.limiter.SetConfig(r.RateLimits)
	}
	if owner, ok := g.exec.(DenylistOwner); ok {
		owner.Denylist().SetExtra(r.Denylist)
	}
	g.logger.Info("configuration applied",
		"mode", string(r.Mode),
		"read_ttl", r.ReadTTL.String(),
		"write_ttl", r.WriteTTL.String(),
		"denylist_extra", len(r.Denylist))
}
