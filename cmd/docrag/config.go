package main

import (
	"fmt"

	"github.com/spf13/cobra"
	yamlv3 "gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration after defaults, the config file and DOCRAG_* environment overrides are applied. With --write the result is saved to a file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if path, _ := cmd.Flags().GetString("write"); path != "" {
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		}
		data, err := yamlv3.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", cfgPath, data)
		return nil
	},
}

func init() {
	configCmd.Flags().String("write", "", "save the effective configuration to this path")
	rootCmd.AddCommand(configCmd)
}
