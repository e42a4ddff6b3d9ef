package cmdguard

import (
	"bytes"
	"encoding/base64"
	"strings"
)

// Describe renders a command for logs without credential arguments.
func Describe(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "-c" && i+1 < len(args) && strings.HasPrefix(strings.ToLower(args[i+1]), "http.extraheader=") {
			i++
			continue
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// PushSpec describes one git push. URL is the verified destination.
type PushSpec struct {
	URL     string
	Refspec string
	Force   bool
	// Lease is the --force-with-lease value. Empty uses the bare flag.
	Lease string
}

// pushOverrides neutralize checkout settings that could run code or
// capture the credential header.
var pushOverrides = []string{
	"-c", "core.hooksPath=/dev/null",
	"-c", "core.fsmonitor=false",
	"-c", "credential.helper=",
	"-c", "http.sslVerify=true",
}

// PushArgs builds git push arguments that authenticate with token through
// an extra HTTP header rather than the remote URL.
func PushArgs(token string, spec PushSpec) []string {
	basic := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	args := append([]string{}, pushOverrides...)
	args = append(args, "-c", "http.extraheader=AUTHORIZATION: basic "+basic, "push", "--no-verify")
	if spec.Force {
		if spec.Lease != "" {
			args = append(args, "--force-with-lease="+spec.Lease)
		} else {
			args = append(args, "--force-with-lease")
		}
	}
	args = append(args, spec.URL)
	if spec.Refspec != "" {
		args = append(args, spec.Refspec)
	}
	return args
}

// credentialEnv are variables never passed to git.
var credentialEnv = []string{
	"GH_TOKEN", "GITHUB_TOKEN", "GITHUB_USER_TOKEN", "GH_ENTERPRISE_TOKEN",
	"GITHUB_ENTERPRISE_TOKEN", "GATEWAY_SECRET", "GIT_CONFIG_PARAMETERS",
	"GIT_CONFIG_COUNT",
}

// gitEnv returns env without credential variables, with system and global
// git config disabled.
func gitEnv(env []string) []string {
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if isCredentialVar(key) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "GIT_CONFIG_NOSYSTEM=1", "GIT_CONFIG_GLOBAL=/dev/null")
}

func isCredentialVar(key string) bool {
	for _, name := range credentialEnv {
		if key == name {
			return true
		}
	}
	return strings.HasPrefix(key, "GIT_CONFIG_KEY_") || strings.HasPrefix(key, "GIT_CONFIG_VALUE_")
}

// limitedWriter keeps at most limit bytes and silently drops the rest.
type limitedWriter struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedWriter(limit int) *limitedWriter {
	return &limitedWriter{limit: limit}
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	room := w.limit - w.buf.Len()
	if room <= 0 {
		w.truncated = len(p) > 0 || w.truncated
		return len(p), nil
	}
	if len(p) > room {
		w.buf.Write(p[:room])
		w.truncated = true
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

func (w *limitedWriter) String() string {
	if w.truncated {
		return w.buf.String() + "\n[output truncated]"
	}
	return w.buf.String()
}
