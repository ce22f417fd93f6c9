package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/researchapps/job-maker/internal/scheduler"
	"github.com/researchapps/job-maker/internal/utils"
	"github.com/spf13/cobra"
)

var (
	checkCluster string
	checkPrint   bool
)

var checkCmd = &cobra.Command{
	Use:   "check <script>",
	Short: "Check an existing batch script against the cluster limits",
	Long: `Read the #SBATCH header of an existing batch script and check it against
the cluster catalog, the same way generate checks its options.

Batch scripts do not name their cluster, so --cluster is required. With
--print the script is written back with any corrections applied (for
example memory clamped to the partition limit).`,
	Example: `  job-maker check align.job --cluster sherlock
  job-maker check align.job -c sherlock --print > fixed.job`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkCluster, "cluster", "c", "", "Cluster the script is meant for")
	checkCmd.Flags().BoolVar(&checkPrint, "print", false, "Print the corrected script to stdout")
	_ = checkCmd.MarkFlagRequired("cluster")
	_ = checkCmd.RegisterFlagCompletionFunc("cluster", completeClusters)
}

func runCheck(cmd *cobra.Command, args []string) error {
	form, err := readScriptForm(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	form.Cluster = checkCluster

	cat, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	res, err := scheduler.Generate(*form, cat)
	printWarnings(res.Warnings)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if checkPrint {
		_, err := io.WriteString(cmd.OutOrStdout(), res.Script)
		return err
	}

	partition := res.Partition
	if res.PartitionDefaulted {
		partition += " (default)"
	}
	if len(res.Warnings) > 0 {
		utils.PrintWarning("%s is usable on %s, partition %s, with %d warnings",
			utils.StylePath(args[0]), utils.StyleName(checkCluster), partition, len(res.Warnings))
		return nil
	}
	utils.PrintSuccess("%s fits %s, partition %s",
		utils.StylePath(args[0]), utils.StyleName(checkCluster), partition)
	return nil
}

// readScriptForm parses the batch script at path, or stdin for "-".
func readScriptForm(path string, stdin io.Reader) (*scheduler.Form, error) {
	if path == "-" {
		return scheduler.ParseScript(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	form, err := scheduler.ParseScript(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return form, nil
}
