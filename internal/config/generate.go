package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigYAML is the commented starter config written by
// `execgate init`. The whitelist ships empty on purpose: the gateway is
// default-deny and operators must opt programs in explicitly.
const defaultConfigYAML = `# execgate configuration.
# Programs not listed in the whitelist are rejected unconditionally.

policy:
  # Exact, case-sensitive program names allowed to run.
  whitelist: []
  #  - python3
  #  - git
  #  - uname

  max_arg_len: 4096        # bytes per argument
  max_arg_count: 50
  default_timeout_s: 30
  max_timeout_s: 300
  max_output_bytes: 10485760  # 10 MB combined stdout+stderr

  # Working directories must resolve under one of these roots.
  # Empty = the directory execgate was started from.
  allowed_working_dirs: []
  # default_working_dir: /srv/work

audit:
  backend: file            # file | sqlite | none
  # path: ~/.execgate/audit.log
  retention_days: 0        # sqlite only; 0 = keep forever
  # prune_schedule: "0 3 * * *"

# observability:
#   metrics:
#     enabled: true
#     listen_addr: ":9090"
#   tracing:
#     enabled: true
#     endpoint: "localhost:4317"
#     protocol: grpc
#     insecure: true
`

// WriteDefault writes the starter config to path, creating parent
// directories. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolving config path %s: %w", path, err)
	}
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config already exists: %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(defaultConfigYAML), 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", resolved, err)
	}
	return nil
}
