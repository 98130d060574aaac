// Package pattern implements the adaptive learning engine that maintains
// per-vendor expense patterns and the fuzzy matching shared across features.
package pattern

import (
	"regexp"
	"strings"
)

var (
	// Processor prefixes carry no vendor signal.
	processorPrefixes = []string{"SQ *", "SQ*", "TST*", "TST *", "PAYPAL *", "PP*", "AMZN MKTP"}

	trailingJunk   = regexp.MustCompile(`[*#]\s*\w*\d+\w*\s*$`)
	multiSpace     = regexp.MustCompile(`\s{2,}`)
	referenceCodes = regexp.MustCompile(`\b(?:REF|AUTH|ID)[:#]?\s*\d+\b`)
)

// NormalizeVendor reduces vendor text to the canonical form patterns are
// keyed by: uppercase, processor prefixes stripped, trailing store and
// reference numbers removed, whitespace collapsed.
func NormalizeVendor(vendor string) string {
	v := strings.ToUpper(strings.TrimSpace(vendor))

	for _, prefix := range processorPrefixes {
		if strings.HasPrefix(v, prefix) {
			v = strings.TrimSpace(strings.TrimPrefix(v, prefix))
			break
		}
	}

	v = referenceCodes.ReplaceAllString(v, "")
	v = trailingJunk.ReplaceAllString(v, "")
	v = strings.Trim(v, " -*#.")
	v = multiSpace.ReplaceAllString(v, " ")

	if v == "" {
		// All junk; fall back to the trimmed original so the key stays stable.
		v = strings.ToUpper(strings.TrimSpace(vendor))
	}

	return v
}
