package flagrelay

import "time"

// httpDateLayouts is the fallback chain of HTTP date grammars, in preference
// order: the fixed-width RFC 1123 format, the legacy verbose-weekday RFC 850
// format, and the C asctime format. Go time layouts parse English month and
// weekday names regardless of host locale, which is what HTTP dates require.
var httpDateLayouts = []string{
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

// parseHTTPDate parses an HTTP Date header value, trying each supported
// grammar in order. The boolean reports whether any grammar matched.
func parseHTTPDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range httpDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
