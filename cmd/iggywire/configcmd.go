package main

import (
	"fmt"

	"github.com/danmuck/iggywire/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Create or check iggywire configuration files",
	}
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the starter configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := viper.GetString("output")
			if path == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), config.Template())
				return err
			}
			if err := config.WriteTemplate(path, viper.GetBool("force")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	configValidateCmd = &cobra.Command{
		Use:   "validate <file>",
		Short: "Strictly parse and validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := validateFile(args[0])
			if err != nil {
				return err
			}
			if !viper.GetBool("print") {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
				return nil
			}
			out, err := config.Render(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
)

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	key := "output"
	configInitCmd.Flags().String(key, "iggywire.toml", wrapString("destination path, - for stdout"))
	key = "force"
	configInitCmd.Flags().Bool(key, false, wrapString("overwrite an existing file"))
	key = "print"
	configValidateCmd.Flags().Bool(key, false, wrapString("print the resolved configuration"))
}
