package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/researchapps/job-maker/internal/catalog"
	"github.com/researchapps/job-maker/internal/config"
	"github.com/researchapps/job-maker/internal/utils"
	"github.com/spf13/cobra"
)

var (
	debugMode     bool
	noColor       bool
	catalogSource string
)

var rootCmd = &cobra.Command{
	Use:   "job-maker",
	Short: "Job Maker: build SLURM batch scripts checked against your cluster's limits.",
	Long: `Job Maker builds SLURM batch scripts from a short form.

Cluster, partition, QoS and feature choices come from a cluster catalog
(JSON or YAML, local or over http). The requested nodes, memory and QoS are
checked against the partition limits before the script is written.`,
	Version:       config.VERSION,
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupConfig(cmd)
	},
}

// setupConfig fills config.Global from defaults, the config file, the
// environment and finally the command-line flags.
func setupConfig(cmd *cobra.Command) {
	// Step 1: Load defaults
	config.LoadDefaults()

	// Step 2: Initialize Viper (config file, env vars)
	if err := config.InitViper(); err != nil {
		utils.PrintWarning("Ignoring config file: %v", err)
	}

	// Step 3: Load values from Viper into Global config
	config.LoadFromViper()

	// Step 4: Apply command-line flags (highest priority)
	if noColor {
		utils.SetColor(false)
	}
	if cmd.Flags().Changed("catalog") {
		config.Global.CatalogSource = catalogSource
	}
	if debugMode {
		utils.DebugMode = true
		config.Global.Debug = true
		utils.PrintDebug("Debug mode enabled")
		utils.PrintDebug("Job Maker Version: %s", utils.StyleInfo(config.VERSION))
		utils.PrintDebug("Catalog Source: %s", config.Global.CatalogSource)
		utils.PrintDebug("Catalog Timeout: %s", config.Global.CatalogTimeout)
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		utils.PrintError("%v", err)
		os.Exit(1)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&catalogSource, "catalog", "", "Cluster catalog file or http(s) URL (overrides catalog.source)")
}

// loadCatalog reads the configured cluster catalog.
func loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	source := config.Global.CatalogSource
	utils.PrintDebug("Loading catalog from %s", utils.StylePath(source))

	cat, err := catalog.NewLoader(config.Global.CatalogTimeout).Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster catalog: %w", err)
	}
	utils.PrintDebug("Catalog has %d clusters", cat.Len())
	return cat, nil
}

// completeClusters offers cluster names from the configured catalog.
func completeClusters(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// completion runs without the persistent pre-run hook
	setupConfig(cmd)
	cat, err := loadCatalog(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return cat.ClusterNames(), cobra.ShellCompDirectiveNoFileComp
}
