package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/researchapps/job-maker/internal/prompt"
	"github.com/researchapps/job-maker/internal/scheduler"
	"github.com/researchapps/job-maker/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	_ pflag.Value = (*memoryValue)(nil)
	_ pflag.Value = (*timeValue)(nil)
)

// memoryValue is the --mem flag. It stays unset unless given, so no
// --mem directive is written by default.
type memoryValue struct {
	mb *int
}

func (m *memoryValue) String() string {
	if m.mb == nil {
		return ""
	}
	return strconv.Itoa(*m.mb)
}

func (m *memoryValue) Set(s string) error {
	mb, err := scheduler.ParseMemory(s)
	if err != nil {
		return err
	}
	m.mb = &mb
	return nil
}

func (m *memoryValue) Type() string { return "size" }

// timeValue is the --time flag, accepting any SLURM time form.
type timeValue struct {
	d time.Duration
}

func (t *timeValue) String() string {
	h, m, s := scheduler.SplitDuration(t.d)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (t *timeValue) Set(s string) error {
	d, err := scheduler.ParseTime(s)
	if err != nil {
		return err
	}
	t.d = d
	return nil
}

func (t *timeValue) Type() string { return "time" }

type generateOptions struct {
	form        scheduler.Form
	mem         memoryValue
	time        timeValue
	scriptFile  string
	interactive bool
	out         string
	force       bool
}

var genOpts = generateOptions{
	form: scheduler.NewForm(),
	time: timeValue{d: time.Hour},
}

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen"},
	Short:   "Generate a SLURM batch script",
	Long: `Generate a SLURM batch script from the given options.

The requested partition, QoS, node count and memory are checked against the
cluster catalog. Problems that can be corrected (memory above the partition
limit, an unadvertised feature) are reported as warnings; anything else
stops generation.

Without --out the script is printed to stdout. With --out pointing at a
directory the script is saved there as <job-name>.job.`,
	Example: `  job-maker generate --cluster sherlock --time 2:00:00 --script-file run.sh
  job-maker generate --cluster sherlock -p gpu -N 2 --mem 8G -C gpu --out jobs/
  job-maker generate -i                       # Fill the form interactively`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringVarP(&genOpts.form.Cluster, "cluster", "c", "", "Cluster to run on")
	f.StringVarP(&genOpts.form.Partition, "partition", "p", "", "Partition (default: the cluster's default partition)")
	f.StringVarP(&genOpts.form.Qos, "qos", "q", "", "Quality of service")
	f.VarP(&genOpts.mem, "mem", "m", "Memory per CPU, in MB or with a unit (4G, 512M)")
	f.IntVarP(&genOpts.form.Nodes, "nodes", "N", 1, "Number of nodes")
	f.VarP(&genOpts.time, "time", "t", "Walltime (HH:MM:SS, MM, D-HH:MM:SS)")
	f.StringVarP(&genOpts.form.JobName, "job-name", "J", "", "Job name (also names the job file)")
	f.StringVar(&genOpts.form.Email, "email", "", "Send all job notifications to this address")
	f.StringVarP(&genOpts.form.Output, "output", "o", "", "Prefix for the job's stdout file")
	f.StringVarP(&genOpts.form.Error, "error", "e", "", "Prefix for the job's stderr file")
	f.StringSliceVarP(&genOpts.form.Features, "feature", "C", nil, "Node feature to require (repeatable)")
	f.StringArrayVar(&genOpts.form.Extra, "directive", nil, "Extra #SBATCH argument written as given (repeatable)")
	f.StringVarP(&genOpts.scriptFile, "script-file", "s", "", "File holding the script body ('-' for stdin)")
	f.BoolVarP(&genOpts.interactive, "interactive", "i", false, "Fill the form with interactive prompts")
	f.StringVar(&genOpts.out, "out", "", "Write the script to this file or directory instead of stdout")
	f.BoolVarP(&genOpts.force, "force", "f", false, "Overwrite an existing output file")

	_ = generateCmd.RegisterFlagCompletionFunc("cluster", completeClusters)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cat, err := loadCatalog(ctx)
	if err != nil {
		return err
	}

	form, err := genOpts.buildForm(cmd.InOrStdin())
	if err != nil {
		return err
	}

	if genOpts.interactive {
		if !utils.IsInteractiveShell() {
			return errors.New("--interactive needs a terminal")
		}
		form, err = prompt.Fill(ctx, prompt.NewSurveyDriver(), cat, form)
		if errors.Is(err, prompt.ErrAborted) {
			utils.PrintMessage("Aborted, no script written.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	res, err := scheduler.Generate(form, cat)
	printWarnings(res.Warnings)
	if err != nil {
		return err
	}

	return writeScript(cmd.OutOrStdout(), res, genOpts.out, genOpts.force)
}

// buildForm turns the flags into a form, reading the script body from
// the --script-file path or from stdin for "-".
func (o *generateOptions) buildForm(stdin io.Reader) (scheduler.Form, error) {
	form := o.form
	form.Features = append([]string(nil), o.form.Features...)
	form.Extra = append([]string(nil), o.form.Extra...)
	if o.mem.mb != nil {
		form.SetMemory(*o.mem.mb)
	}
	form.SetDuration(o.time.d)

	switch o.scriptFile {
	case "":
	case "-":
		body, err := io.ReadAll(stdin)
		if err != nil {
			return form, fmt.Errorf("failed to read script from stdin: %w", err)
		}
		form.Script = string(body)
	default:
		body, err := os.ReadFile(o.scriptFile)
		if err != nil {
			return form, fmt.Errorf("failed to read script file: %w", err)
		}
		form.Script = string(body)
	}
	return form, nil
}

// writeScript prints the script to stdout, or saves it when out is set.
// A directory out receives the script under its job file name.
func writeScript(stdout io.Writer, res *scheduler.Result, out string, force bool) error {
	if out == "" {
		_, err := io.WriteString(stdout, res.Script)
		return err
	}

	path := out
	if utils.DirExists(out) {
		path = filepath.Join(out, res.JobFile())
	}
	if err := utils.WriteOutputFile(path, []byte(res.Script), force); err != nil {
		return err
	}
	utils.PrintSuccess("Job script written to %s", utils.StylePath(path))
	utils.PrintHint("Submit it with: %s", utils.StyleCommand("sbatch "+path))
	return nil
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		utils.PrintWarning("%s", w)
	}
}
