package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkaninda/execgate/internal/config"
)

var initConfigPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented starter config file",
	Long: `Init writes a starter config with an empty whitelist. Execgate denies
every program until the whitelist is filled in, so the generated file is
safe to start from but useless until edited.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := config.WriteDefault(initConfigPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", initConfigPath)
		fmt.Println("edit the whitelist before serving: every program is denied by default")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initConfigPath, "config", config.DefaultConfigPath(), "where to write the config file")
}
