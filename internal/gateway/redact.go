package gateway

import "regexp"

// Secret-shaped values are masked in captured output before it reaches
// tool callers: commands routinely echo their configuration, and an AI
// agent reading tool output must not be handed credentials.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key\s*=\s*)["']?[\w-]+["']?`),
	regexp.MustCompile(`(?i)(token\s*=\s*)["']?[\w-]+["']?`),
	regexp.MustCompile(`(?i)(password\s*=\s*)["']?[\w-]+["']?`),
	regexp.MustCompile(`(?i)(Bearer\s+)[\w-]+`),
}

const redactedValue = "$1***REDACTED***"

// RedactSecrets masks API keys, tokens, passwords, and bearer values in
// command output. Returns the input unchanged when nothing matches.
func RedactSecrets(output []byte) []byte {
	for _, pattern := range secretPatterns {
		if pattern.Match(output) {
			output = pattern.ReplaceAll(output, []byte(redactedValue))
		}
	}
	return output
}
