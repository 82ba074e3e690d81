package util

import "fmt"

// maxErrorBody bounds how much of an upstream response body is carried
// into error messages and logs.
const maxErrorBody = 1024

// Truncate shortens s to at most maxLen bytes, appending the original
// length when it cuts.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes bounds an upstream response body for inclusion in an
// error message.
func TruncateBytes(b []byte) string {
	return Truncate(string(b), maxErrorBody)
}
