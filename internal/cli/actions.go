package cli

import (
	"github.com/spf13/cobra"
)

var (
	actionsLimitFlag int
	reflectLimitFlag int
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List recent audit-trail entries, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		entries, err := bot.Store().RecentActions(ctx, actionsLimitFlag)
		if err != nil {
			exitErr("list actions", err)
		}
		output(entries)
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Summarize recent unreflected actions through the generator",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		summary, err := bot.BatchReflect(ctx, reflectLimitFlag)
		if err != nil {
			exitErr("reflect", err)
		}
		if summary == "" {
			output(map[string]string{"status": "nothing to reflect on"})
			return
		}
		output(summary)
	},
}

func init() {
	actionsCmd.Flags().IntVar(&actionsLimitFlag, "limit", 20, "Maximum entries (0 = all)")
	reflectCmd.Flags().IntVar(&reflectLimitFlag, "limit", 50, "Maximum actions to reflect on")
	RootCmd.AddCommand(actionsCmd, reflectCmd)
}
