package gateway

import (
	"fmt"
	"strings"
)

// dangerousChars are shell metacharacters refused in any argument.
// The runner never invokes a shell, so none of these are exploitable
// through this gateway; the rule is an intent
// signal: arguments that look like injection attempts are refused
// regardless of actual exploitability.
var dangerousChars = []string{";", "|", "&", "$", "`", "\n", "\r"}

// dangerousPatterns is a fixed, case-sensitive substring deny-list of
// destructive-deletion, dynamic-evaluation, and nested-process-spawn
// idioms. It is a heuristic, not a sandboxing guarantee: it cannot
// enumerate every injection idiom and will flag benign arguments that
// happen to contain these substrings. The real safety boundary is the
// runner's explicit argument vector with no shell interpretation.
var dangerousPatterns = []string{
	"rm -rf",
	"eval(",
	"exec(",
	"__import__",
	"subprocess",
	"os.system",
}

// Validate checks a sanitized request against the policy. It is pure:
// the same request and policy always produce the same outcome, and no
// state is read or written. Checks run in a fixed order and stop at
// the first failure, so every rejection has exactly one kind.
//
// A nil return means the request is accepted.
func Validate(req Request, policy *Policy) error {
	if !policy.allows(req.Program) {
		return &ValidationError{
			Kind:   KindNotWhitelisted,
			Reason: fmt.Sprintf("program not allowed: %s", req.Program),
		}
	}

	if len(req.Args) > policy.MaxArgCount {
		return &ValidationError{
			Kind:   KindTooManyArguments,
			Reason: fmt.Sprintf("too many arguments: %d (max: %d)", len(req.Args), policy.MaxArgCount),
		}
	}

	for i, arg := range req.Args {
		if len(arg) > policy.MaxArgLen {
			return &ValidationError{
				Kind:   KindArgumentTooLong,
				Reason: fmt.Sprintf("argument %d too long: %d bytes (max: %d)", i, len(arg), policy.MaxArgLen),
			}
		}
	}

	for i, arg := range req.Args {
		for _, c := range dangerousChars {
			if strings.Contains(arg, c) {
				return &ValidationError{
					Kind:   KindDangerousCharacter,
					Reason: fmt.Sprintf("dangerous character in argument %d: %q", i, c),
				}
			}
		}
	}

	for i, arg := range req.Args {
		for _, pattern := range dangerousPatterns {
			if strings.Contains(arg, pattern) {
				return &ValidationError{
					Kind:   KindDangerousPattern,
					Reason: fmt.Sprintf("dangerous pattern in argument %d: %q", i, pattern),
				}
			}
		}
	}

	for i, arg := range req.Args {
		if containsTraversal(arg) {
			return &ValidationError{
				Kind:   KindPathTraversal,
				Reason: fmt.Sprintf("path traversal in argument %d", i),
			}
		}
	}

	return nil
}

// containsTraversal reports whether the argument contains ".." as a
// path component, on either separator convention.
func containsTraversal(arg string) bool {
	if !strings.Contains(arg, "..") {
		return false
	}
	for _, segment := range strings.FieldsFunc(arg, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if segment == ".." {
			return true
		}
	}
	return false
}
