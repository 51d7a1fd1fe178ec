package gateway

import "strings"

// SanitizeArg normalizes a candidate argument before any semantic check:
// leading/trailing whitespace is trimmed and embedded NUL bytes removed.
// Emptiness after trimming is a validator concern, not a sanitizer one;
// the empty string passes through unchanged.
func SanitizeArg(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.ContainsRune(arg, 0) {
		arg = strings.ReplaceAll(arg, "\x00", "")
	}
	return arg
}

// SanitizeArgs returns a fresh slice of sanitized arguments.
// The input slice is never modified; the caller's request stays immutable.
func SanitizeArgs(args []string) []string {
	if args == nil {
		return nil
	}
	sanitized := make([]string, len(args))
	for i, arg := range args {
		sanitized[i] = SanitizeArg(arg)
	}
	return sanitized
}
