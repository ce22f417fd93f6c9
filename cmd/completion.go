package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// detectShell guesses the user's shell from $SHELL, falling back to bash.
func detectShell() string {
	switch name := strings.ToLower(filepath.Base(os.Getenv("SHELL"))); {
	case strings.Contains(name, "fish"):
		return "fish"
	case strings.Contains(name, "zsh"):
		return "zsh"
	case strings.Contains(name, "pwsh"), strings.Contains(name, "powershell"):
		return "powershell"
	default:
		return "bash"
	}
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for job-maker.

If no shell is given it is detected from $SHELL.

Bash:
  $ source <(job-maker completion bash)

Zsh:
  $ job-maker completion zsh > "${fpath[1]}/_job-maker"

Fish:
  $ job-maker completion fish > ~/.config/fish/completions/job-maker.fish

PowerShell:
  PS> job-maker completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	SilenceUsage:          true,
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := detectShell()
		if len(args) > 0 {
			shell = args[0]
		}

		out := cmd.OutOrStdout()
		root := cmd.Root()
		switch shell {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unsupported shell: %s", shell)
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
