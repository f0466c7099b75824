package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/iggywire/internal/logging"
	"github.com/danmuck/iggywire/internal/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// wrap is the column help text is wrapped at.
const wrap = 50

var (
	rootCmd = &cobra.Command{
		Use:   "iggywire",
		Short: "decode the Iggy binary command protocol",
		Long: fmt.Sprintf(`iggywire (v%s)

Reassembles and decodes Iggy request and response frames from capture files or
a live TCP tap, pairing each response with the request it answers.`, observability.Version),
		SilenceUsage:      true,
		PersistentPreRunE: bindFlags,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of iggywire",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "iggywire v%s\n", observability.Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(proxyCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	key := "config"
	rootCmd.PersistentFlags().String(key, "", wrapString("TOML configuration file; flags and IGGYWIRE_* environment variables override its values"))
	key = "log-level"
	rootCmd.PersistentFlags().String(key, "", wrapString("log level (trace, debug, info, warn, error, off)"))
}

func initEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("iggywire")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindFlags binds the running command's flags to viper and applies the global ones.
func bindFlags(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		if !logging.SetLevel(lvl) {
			return fmt.Errorf("invalid log level %q", lvl)
		}
	}
	return nil
}

func wrapString(text string) string {
	var lines []string
	var line strings.Builder
	width := 0
	for _, word := range strings.Fields(text) {
		if width > 0 && width+1+len(word) > wrap {
			lines = append(lines, line.String())
			line.Reset()
			width = 0
		}
		if width > 0 {
			line.WriteString(" ")
			width++
		}
		line.WriteString(word)
		width += len(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
