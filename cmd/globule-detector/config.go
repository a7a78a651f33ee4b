package main

import (
	"fmt"

	"globule-detector/internal/params"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate detection parameters",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Print the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := params.DefaultConfig().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	var file string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = configPath
			}
			if file == "" {
				return fmt.Errorf("no configuration file given (use --file)")
			}

			cfg, err := params.LoadConfig(file)
			if err != nil {
				return err
			}
			if _, err := params.NewGlobuleParameters(cfg.Globule); err != nil {
				return err
			}
			if _, err := params.NewTissueParameters(cfg.Tissue); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration valid\n", file)
			return nil
		},
	}
	validate.Flags().StringVarP(&file, "file", "f", "", "configuration file to validate")
	cmd.AddCommand(validate)

	return cmd
}
