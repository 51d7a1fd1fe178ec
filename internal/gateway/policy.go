package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default policy limits. These mirror the config defaults so a zero-config
// gateway behaves identically to one built from a generated config file.
const (
	DefaultMaxArgLen      = 4096              // 4 KB per argument.
	DefaultMaxArgCount    = 50
	DefaultTimeout        = 30 * time.Second
	DefaultMaxTimeout     = 300 * time.Second // 5 minutes.
	DefaultMaxOutputBytes = 10 << 20          // 10 MB combined stdout+stderr.
)

// Policy is the complete rule set for one gateway instance.
// Loaded once at construction and never mutated afterwards, safe for
// unsynchronized concurrent reads. Runtime reconfiguration means building
// a new gateway with a new Policy, never editing fields in place.
type Policy struct {
	// Whitelist is the set of program names allowed to run.
	// Matching is exact and case-sensitive; anything else is rejected.
	Whitelist []string

	// MaxArgLen caps each argument's byte length.
	MaxArgLen int

	// MaxArgCount caps the number of arguments per request.
	MaxArgCount int

	// DefaultTimeout applies when the request carries no timeout.
	DefaultTimeout time.Duration

	// MaxTimeout caps any requested timeout.
	MaxTimeout time.Duration

	// MaxOutputBytes caps combined stdout+stderr capture.
	MaxOutputBytes int

	// AllowedWorkingDirs are the roots a working directory may resolve
	// into. Canonicalized by Normalize before use.
	AllowedWorkingDirs []string

	// DefaultWorkingDir is used when the request names no directory.
	// Must itself live under an allowed root.
	DefaultWorkingDir string

	whitelist map[string]struct{} // built by Normalize
}

// DefaultPolicy returns a policy with the standard limits and an empty
// whitelist. A gateway built from it rejects everything until programs
// are whitelisted.
func DefaultPolicy() Policy {
	return Policy{
		MaxArgLen:      DefaultMaxArgLen,
		MaxArgCount:    DefaultMaxArgCount,
		DefaultTimeout: DefaultTimeout,
		MaxTimeout:     DefaultMaxTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// Normalize fills zero limits with defaults, canonicalizes the allowed
// working-directory roots (resolving symlinks), and builds the whitelist
// index. Called once by NewGateway; the returned policy is the snapshot
// every request sees.
func (p Policy) Normalize() (Policy, error) {
	def := DefaultPolicy()
	if p.MaxArgLen <= 0 {
		p.MaxArgLen = def.MaxArgLen
	}
	if p.MaxArgCount <= 0 {
		p.MaxArgCount = def.MaxArgCount
	}
	if p.DefaultTimeout <= 0 {
		p.DefaultTimeout = def.DefaultTimeout
	}
	if p.MaxTimeout <= 0 {
		p.MaxTimeout = def.MaxTimeout
	}
	if p.MaxTimeout < p.DefaultTimeout {
		return Policy{}, fmt.Errorf("max timeout %s is below default timeout %s", p.MaxTimeout, p.DefaultTimeout)
	}
	if p.MaxOutputBytes <= 0 {
		p.MaxOutputBytes = def.MaxOutputBytes
	}

	if len(p.AllowedWorkingDirs) == 0 {
		// No roots configured: fall back to the process working directory.
		cwd, err := os.Getwd()
		if err != nil {
			return Policy{}, fmt.Errorf("resolving process working directory: %w", err)
		}
		p.AllowedWorkingDirs = []string{cwd}
	}

	roots := make([]string, 0, len(p.AllowedWorkingDirs))
	for _, dir := range p.AllowedWorkingDirs {
		canonical, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return Policy{}, fmt.Errorf("canonicalizing allowed working dir %s: %w", dir, err)
		}
		roots = append(roots, canonical)
	}
	p.AllowedWorkingDirs = roots

	if p.DefaultWorkingDir == "" {
		p.DefaultWorkingDir = p.AllowedWorkingDirs[0]
	} else {
		canonical, err := filepath.EvalSymlinks(p.DefaultWorkingDir)
		if err != nil {
			return Policy{}, fmt.Errorf("canonicalizing default working dir %s: %w", p.DefaultWorkingDir, err)
		}
		if !underAnyRoot(canonical, p.AllowedWorkingDirs) {
			return Policy{}, fmt.Errorf("default working dir %s is outside the allowed roots", p.DefaultWorkingDir)
		}
		p.DefaultWorkingDir = canonical
	}

	p.whitelist = make(map[string]struct{}, len(p.Whitelist))
	for _, prog := range p.Whitelist {
		p.whitelist[prog] = struct{}{}
	}
	return p, nil
}

// allows reports whitelist membership. Exact, case-sensitive.
func (p *Policy) allows(program string) bool {
	if p.whitelist != nil {
		_, ok := p.whitelist[program]
		return ok
	}
	for _, prog := range p.Whitelist {
		if prog == program {
			return true
		}
	}
	return false
}

// effectiveTimeout clamps a requested timeout into [1s, MaxTimeout],
// or returns the default when none was requested.
func (p *Policy) effectiveTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return p.DefaultTimeout
	}
	if requested < time.Second {
		requested = time.Second
	}
	if requested > p.MaxTimeout {
		return p.MaxTimeout
	}
	return requested
}

// underAnyRoot reports whether path equals or descends from one of roots.
// Both sides must already be canonical.
func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel == "." || (!filepath.IsAbs(rel) && !hasDotDotPrefix(rel)) {
			return true
		}
	}
	return false
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
