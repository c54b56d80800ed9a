package logutil

import "unicode/utf8"

// TruncateForLog shortens provider payloads before they are logged or put in
// error messages. The cut never splits a UTF-8 sequence.
func TruncateForLog(s string, maxLen int) string {
	if maxLen <= 0 {
		return "..."
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
