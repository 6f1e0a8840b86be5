package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var noContextFlag bool

var processCmd = &cobra.Command{
	Use:   "process <prompt>",
	Short: "Process a prompt through the generator, recording it in the ledger",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		result, err := bot.Process(ctx, strings.Join(args, " "), !noContextFlag)
		if err != nil {
			exitErr("process", err)
		}
		if formatFlag == "text" {
			output(result.Response)
			return
		}
		output(result)
	},
}

func init() {
	processCmd.Flags().BoolVar(&noContextFlag, "no-context", false, "Exclude the context document from the payload")
	RootCmd.AddCommand(processCmd)
}
