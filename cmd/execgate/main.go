// Execgate is a policy-enforced gateway for external command execution.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "execgate",
	Short: "Secure command execution gateway for AI agents and automation.",
	Long: `Execgate executes external commands on behalf of untrusted callers under a
strict whitelist policy. Every request is sanitized, validated, and audited
before a process is spawned; nothing ever passes through a shell.`,
	RunE:          runServe, // Default to MCP server mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd, initCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
