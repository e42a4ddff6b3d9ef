package cmdguard

import (
	"regexp"
	"strings"

	"github.com/jibsandbox/jib-gateway/internal/redact"
)

// envLineRe matches environment dumps of the gateway's credential variables.
var envLineRe = regexp.MustCompile(
	`(?im)^(?:declare -x |export )?` +
		`(GH_TOKEN|GITHUB_TOKEN|GITHUB_USER_TOKEN|GH_ENTERPRISE_TOKEN|GATEWAY_SECRET)` +
		`[= ].*$`,
)

// longHexRe matches bare hex secrets such as the gateway secret.
var longHexRe = regexp.MustCompile(`\b[a-f0-9]{64,}\b`)

// ScrubOutput masks credentials in command output and reports how many were
// found. Runs of masked env lines collapse into one mask.
func ScrubOutput(output string) (string, int) {
	count := 0
	mask := func(string) string {
		count++
		return redact.Mask
	}
	output = envLineRe.ReplaceAllStringFunc(output, mask)
	output = longHexRe.ReplaceAllStringFunc(output, mask)
	for strings.Contains(output, redact.Mask+"\n"+redact.Mask) {
		output = strings.ReplaceAll(output, redact.Mask+"\n"+redact.Mask, redact.Mask)
	}

	if n := len(redact.Scan(output)); n > 0 {
		count += n
		output = redact.New(nil).String(output)
	}
	return output, count
}
