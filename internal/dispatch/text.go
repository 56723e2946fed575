package dispatch

import "strings"

// composeText assembles the outbound line by plain concatenation:
// prefix + base + enrichment + suffix. No separators are inserted; any
// desired spacing belongs to the configured fragments themselves.
func composeText(prefix, base, enrichment, suffix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(base) + len(enrichment) + len(suffix))
	b.WriteString(prefix)
	b.WriteString(base)
	b.WriteString(enrichment)
	b.WriteString(suffix)
	return b.String()
}
