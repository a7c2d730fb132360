package cli

import (
	"github.com/spf13/cobra"
)

const completionHelp = `Generate shell completion scripts for atlas.

Bash:
  $ source <(atlas completion bash)
  # persist (Linux):
  $ atlas completion bash > /etc/bash_completion.d/atlas

Zsh:
  $ atlas completion zsh > "${fpath[1]}/_atlas"
  # start a new shell afterwards

Fish:
  $ atlas completion fish > ~/.config/fish/completions/atlas.fish

PowerShell:
  PS> atlas completion powershell | Out-String | Invoke-Expression
`

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion scripts",
		Long:                  completionHelp,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
