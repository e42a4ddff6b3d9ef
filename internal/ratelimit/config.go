package ratelimit

import (
	"time"

	"github.com/jibsandbox/jib-gateway/internal/model"
)

// DefaultWindow is the sliding window every budget is counted over.
const DefaultWindow = time.Hour

// DefaultKey is the budget applied to operations without their own entry.
const DefaultKey = "default"

// Config holds per-operation hourly budgets plus a combined budget across
// all operations. A zero budget disables that limit.
type Config struct {
	Window     time.Duration  `yaml:"window"`
	Combined   int            `yaml:"combined"`
	Operations map[string]int `yaml:"operations"`
}

// DefaultConfig returns budgets sized to stay under GitHub's 5000/hr
// per-token quota.
func DefaultConfig() Config {
	return Config{
		Window:   DefaultWindow,
		Combined: 4000,
		Operations: map[string]int{
			string(model.OpPush):      1000,
			string(model.OpExecute):   2000,
			string(model.OpPRCreate):  500,
			string(model.OpPRComment): 1000,
			string(model.OpPREdit):    500,
			string(model.OpPRClose):   500,
			DefaultKey:                1000,
		},
	}
}

// Budget returns the budget for op, falling back to the default entry.
func (c Config) Budget(op string) int {
	if n, ok := c.Operations[op]; ok {
		return n
	}
	return c.Operations[DefaultKey]
}

// HasLimits reports whether any budget is configured.
func (c Config) HasLimits() bool {
	if c.Combined > 0 {
		return true
	}
	for _, n := range c.Operations {
		if n > 0 {
			return true
		}
	}
	return false
}
