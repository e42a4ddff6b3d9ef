// Package alert posts gateway decisions to webhooks.
package alert

// Config defines a webhook destination.
type Config struct {
	URL    string `yaml:"url"    json:"url"`
	Format string `yaml:"format" json:"format"` // "generic", "slack", "pagerduty"
	// Events selects decisions ("deny") or denial kinds ("merge_blocked").
	Events  []string          `yaml:"events"  json:"events"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp  string `json:"timestamp"`
	RequestID  string `json:"request_id"`
	Transport  string `json:"transport,omitempty"`
	Operation  string `json:"operation"`
	Repository string `json:"repository,omitempty"`
	Decision   string `json:"decision"`
	Kind       string `json:"kind,omitempty"`
	Reason     string `json:"reason"`
}
