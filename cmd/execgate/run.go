package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/execgate/internal/config"
	"github.com/jkaninda/execgate/internal/gateway"
	goutils "github.com/jkaninda/go-utils"
)

var (
	runConfigPath string
	runDir        string
	runTimeout    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- program [args...]",
	Short: "Execute a single command through the gateway",
	Long: `Run executes one command through the full gateway pipeline: sanitization,
policy validation, audit, and supervised execution. The child's stdout and
stderr are written through, and its exit code becomes the process exit code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory for the command")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "execution timeout (e.g. 45s); 0 uses the policy default")
}

func runRun(_ *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig(goutils.Env("EXECGATE_CONFIG", runConfigPath), logger)
	if err != nil {
		return err
	}

	c, err := initComponents(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := c.Gateway.Execute(ctx, gateway.Request{
		Program:    args[0],
		Args:       args[1:],
		WorkingDir: runDir,
		Timeout:    runTimeout,
	})
	if err != nil {
		c.Cleanup()
		return err
	}

	os.Stdout.Write(result.Stdout)
	os.Stderr.Write(result.Stderr)
	if result.Truncated {
		fmt.Fprintln(os.Stderr, "execgate: output truncated by policy")
	}

	// Mirror the child's exit status. os.Exit skips defers, so tear
	// down explicitly first.
	exitCode := 0
	switch {
	case result.TimedOut:
		fmt.Fprintf(os.Stderr, "execgate: command timed out after %s\n", result.Elapsed.Round(time.Millisecond))
		exitCode = 124
	case result.ExitCode != nil:
		exitCode = *result.ExitCode
	}

	c.Cleanup()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}
