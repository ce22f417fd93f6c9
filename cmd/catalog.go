package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/researchapps/job-maker/internal/catalog"
	"github.com/researchapps/job-maker/internal/config"
	"github.com/researchapps/job-maker/internal/utils"
	"github.com/spf13/cobra"
)

var (
	importOut   string
	importForce bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or build the cluster catalog",
	Long: `Inspect the cluster catalog used to check job requests, or build one from
a slurm.conf.

The catalog is read from --catalog, JOB_MAKER_CATALOG_SOURCE or the
catalog.source config key, in that order.`,
}

var catalogListCmd = &cobra.Command{
	Use:          "list",
	Aliases:      []string{"ls"},
	Short:        "List clusters in the catalog",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		printClusterList(cmd.OutOrStdout(), cat)
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:               "show <cluster>",
	Short:             "Show the partitions and limits of a cluster",
	Args:              cobra.ExactArgs(1),
	SilenceUsage:      true,
	ValidArgsFunction: completeClusters,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		cluster, ok := cat.Cluster(args[0])
		if !ok {
			return fmt.Errorf("unknown cluster %q in %s", args[0], config.Global.CatalogSource)
		}
		printCluster(cmd.OutOrStdout(), args[0], cluster)
		return nil
	},
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <slurm.conf>",
	Short: "Build a catalog from a slurm.conf",
	Long: `Build a catalog document from a slurm.conf.

Partitions, their MaxNodes, MaxMemPerCPU and AllowQos settings, and the
features of their nodes are imported. The cluster is named after
ClusterName. Partitions whose name starts with "test" are skipped. Use '-'
to read slurm.conf from stdin.`,
	Example: `  job-maker catalog import /etc/slurm/slurm.conf
  job-maker catalog import slurm.conf --out data/machines.json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCatalogImport,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogImportCmd)

	catalogImportCmd.Flags().StringVar(&importOut, "out", "", "Write the catalog to this file instead of stdout")
	catalogImportCmd.Flags().BoolVarP(&importForce, "force", "f", false, "Overwrite an existing output file")
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	var r io.Reader
	if args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open slurm.conf: %w", err)
		}
		defer f.Close()
		r = f
	}

	cat, err := catalog.ParseSlurmConf(r)
	if err != nil {
		return err
	}
	data, err := catalog.Marshal(cat)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if importOut == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := utils.WriteOutputFile(importOut, data, importForce); err != nil {
		return err
	}
	utils.PrintSuccess("Imported %s clusters into %s", utils.StyleNumber(cat.Len()), utils.StylePath(importOut))
	return nil
}

func printClusterList(w io.Writer, cat *catalog.Catalog) {
	fmt.Fprintln(w, utils.StyleTitle("Clusters:"))
	for _, name := range cat.ClusterNames() {
		cluster, _ := cat.Cluster(name)
		def, ok := cluster.DefaultPartition()
		if !ok {
			def = "none"
		}
		fmt.Fprintf(w, "  %-20s %d partitions (default: %s)\n",
			name, len(cluster.Partitions), def)
	}
}

func printCluster(w io.Writer, name string, cluster *catalog.Cluster) {
	fmt.Fprintln(w, utils.StyleTitle("Cluster "+name+":"))
	fmt.Fprintf(w, "  %-16s %9s %11s  %-20s %s\n", "PARTITION", "MAX NODES", "MAX MB/CPU", "QOS", "FEATURES")
	for _, pname := range cluster.PartitionNames() {
		limits, _ := cluster.Partition(pname)

		label := pname
		for _, d := range cluster.DefaultPartitions {
			if d == pname {
				label += "*"
				break
			}
		}
		mem := "-"
		if limits.MaxMemPerCPU > 0 {
			mem = fmt.Sprint(limits.MaxMemPerCPU)
		}
		qos := "any"
		if len(limits.AllowedQos) > 0 {
			qos = strings.Join(limits.AllowedQos, ",")
		}
		features := strings.Join(cluster.PartitionFeatures(pname), ",")

		fmt.Fprintf(w, "  %-16s %9d %11s  %-20s %s\n", label, limits.MaxNodes, mem, qos, features)
	}
	if len(cluster.DefaultPartitions) > 0 {
		fmt.Fprintf(w, "  (* default partition)\n")
	}
}
