package alert

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// Dispatcher fans out events to matching webhooks.
type Dispatcher struct {
	configs []Config
	client  *http.Client
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Returns nil if configs is empty;
// a nil Dispatcher ignores events.
func NewDispatcher(configs []Config, logger *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		configs: configs,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// Dispatch sends event to every webhook whose Events match its decision or
// kind. It does not block the caller.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if !matches(cfg.Events, event) {
			continue
		}
		d.wg.Add(1)
		go func(cfg Config) {
			defer d.wg.Done()
			if err := Send(context.Background(), d.client, cfg, event); err != nil {
				d.logger.Warn("alert delivery failed", "url", cfg.URL, "request_id", event.RequestID, "error", err)
			}
		}(cfg)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

func matches(events []string, event Event) bool {
	for _, e := range events {
		if e == event.Decision || (event.Kind != "" && e == event.Kind) {
			return true
		}
	}
	return false
}
