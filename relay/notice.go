package relay

import "strings"

// IsNegentropyUnsupported returns true if the NOTICE text looks like the relay's
// reaction to a negentropy message it does not understand.
func IsNegentropyUnsupported(notice string) bool {
	s := strings.ToLower(notice)
	return strings.Contains(s, "negentropy") ||
		strings.Contains(s, "bad msg") ||
		strings.Contains(s, "bad message") ||
		(strings.Contains(s, "unknown") && strings.Contains(s, "msg")) ||
		(strings.Contains(s, "unsupported") && strings.Contains(s, "protocol"))
}
