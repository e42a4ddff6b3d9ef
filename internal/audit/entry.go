package audit

// Entry is one line in the hash-chained JSONL audit log. Fields are plain
// strings so json.Marshal output, and therefore the chain hash, is stable.
type Entry struct {
	Timestamp  string `json:"ts"`
	RequestID  string `json:"request_id"`
	Transport  string `json:"transport,omitempty"`
	Operation  string `json:"operation"`
	Repository string `json:"repository,omitempty"`
	Target     string `json:"target,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Decision   string `json:"decision"`
	Kind       string `json:"kind,omitempty"`
	Reason     string `json:"reason"`
	PrevHash   string `json:"prev_hash"`
}

// Recorder accepts audit entries. *Log and Nop implement it.
type Recorder interface {
	Record(Entry) (Entry, error)
}

// Nop discards entries, used when no audit path is configured.
type Nop struct{}

// Record returns e unchanged.
func (Nop) Record(e Entry) (Entry, error) { return e, nil }
