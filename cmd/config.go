package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/researchapps/job-maker/internal/config"
	"github.com/researchapps/job-maker/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configKeysCompletion completes the key, then the value for that key
func configKeysCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return config.Keys, cobra.ShellCompDirectiveNoFileComp
	case 1:
		return config.ValueCompletion(args[0]), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage job-maker configuration",
	Long: `Manage job-maker configuration settings.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (JOB_MAKER_*)
  3. User config file (~/.config/job-maker/config.yaml)
  4. ~/.job-maker/config.yaml, /etc/job-maker/config.yaml, ./config.yaml
  5. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the config file in use, every setting and the environment
variables that override them.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		printConfig(cmd.OutOrStdout())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Get a configuration value",
	Args:              cobra.ExactArgs(1),
	SilenceUsage:      true,
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains(config.Keys, args[0]) {
			return fmt.Errorf("%w: %s", config.ErrUnknownKey, args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), viper.GetString(args[0]))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the user config file.

Examples:
  job-maker config set catalog.source https://hpc.example.edu/machines.json
  job-maker config set catalog.timeout 30s
  job-maker config set serve.listen_addr 127.0.0.1:9000
  job-maker config set log.format json`,
	Args:              cobra.ExactArgs(2),
	SilenceUsage:      true,
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.ValidateValue(key, value); err != nil {
			return err
		}

		viper.Set(key, value)
		if err := config.SaveConfig(); err != nil {
			return err
		}

		configPath, _ := config.GetUserConfigPath()
		utils.PrintSuccess("Set %s = %s", utils.StyleInfo(key), utils.StyleInfo(value))
		utils.PrintMessage("Config saved to: %s", utils.StylePath(configPath))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:          "path",
	Short:        "Print the user config file path",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathCmd)
}

func printConfig(w io.Writer) {
	fmt.Fprintln(w, utils.StyleTitle("Config File:"))
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "  %s %s\n", used, utils.StyleSuccess("(in use)"))
	} else {
		fmt.Fprintf(w, "  %s\n", utils.StyleWarning("No config file found"))
		fmt.Fprintln(w, "  Searched:")
		for i, dir := range config.SearchPaths() {
			fmt.Fprintf(w, "    %d. %s\n", i+1, dir)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, utils.StyleTitle("Current Configuration:"))
	g := config.Global
	values := []struct{ key, value string }{
		{"catalog.source", g.CatalogSource},
		{"catalog.timeout", g.CatalogTimeout.String()},
		{"serve.listen_addr", g.ListenAddr},
		{"serve.shutdown_timeout", g.ShutdownTimeout.String()},
		{"log.level", g.Log.Level},
		{"log.format", g.Log.Format},
		{"log.output", g.Log.Output},
		{"log.file", g.Log.File},
	}
	for _, v := range values {
		fmt.Fprintf(w, "  %-24s %s\n", v.key+":", v.value)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, utils.StyleTitle("Environment Variable Overrides:"))
	found := false
	for _, key := range config.Keys {
		env := config.EnvVar(key)
		if val, ok := os.LookupEnv(env); ok {
			fmt.Fprintf(w, "  %s=%s\n", env, val)
			found = true
		}
	}
	if !found {
		fmt.Fprintf(w, "  %s\n", utils.StyleInfo("none"))
	}
}
