package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiopulse/internal/conf"
)

// Command creates a new command printing the effective configuration.
func Command(settings *conf.Settings) *cobra.Command {
	var savePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Prints defaults merged with the config file, environment and flags as YAML.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if savePath != "" {
				if err := conf.SaveYAMLConfig(savePath, settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration saved to %s\n", savePath)
				return nil
			}

			data, err := conf.DumpYAML(settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "Write the configuration to this path instead of printing it")
	return cmd
}
