package license

import "strings"

// HasScope reports whether granted covers required.
// Tokens are compared trimmed and lower-cased. A token matches on equality,
// "*" matches everything and "prefix:*" matches any scope starting with "prefix:".
func HasScope(granted []string, required string) bool {
	req := strings.ToLower(strings.TrimSpace(required))
	if req == "" {
		return false
	}
	for _, g := range granted {
		tok := strings.ToLower(strings.TrimSpace(g))
		if tok == "" {
			continue
		}
		if tok == "*" || tok == req {
			return true
		}
		if prefix, ok := strings.CutSuffix(tok, "*"); ok && strings.HasSuffix(prefix, ":") {
			if strings.HasPrefix(req, prefix) {
				return true
			}
		}
	}
	return false
}
