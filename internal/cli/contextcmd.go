package cli

import (
	"github.com/spf13/cobra"
)

var historyLimitFlag int

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Read and edit the context document",
}

var contextShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current context document",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bot, err := openBot(cmd.Context())
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		content, err := bot.Context().Get()
		if err != nil {
			exitErr("read context", err)
		}
		output(content)
	},
}

var contextUpdateCmd = &cobra.Command{
	Use:   "update <content>",
	Short: "Replace the entire context document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		if err := bot.Context().Update(ctx, args[0]); err != nil {
			exitErr("update context", err)
		}
		output(map[string]string{"status": "updated"})
	},
}

var contextAppendCmd = &cobra.Command{
	Use:   "append <text>",
	Short: "Append text to the document or to a named section",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		section, _ := cmd.Flags().GetString("section")
		if section != "" {
			err = bot.Context().AppendSection(ctx, section, args[0])
		} else {
			err = bot.Context().Append(ctx, args[0])
		}
		if err != nil {
			exitErr("append context", err)
		}
		output(map[string]string{"status": "appended"})
	},
}

var contextSectionCmd = &cobra.Command{
	Use:   "section <name> <text>",
	Short: "Replace the body of a named section, creating it if absent",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		if err := bot.Context().UpdateSection(ctx, args[0], args[1]); err != nil {
			exitErr("update section", err)
		}
		output(map[string]string{"section": args[0], "status": "updated"})
	},
}

var contextHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List context snapshots, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bot, err := openBot(cmd.Context())
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		infos, err := bot.Context().History(historyLimitFlag)
		if err != nil {
			exitErr("list history", err)
		}
		output(infos)
	},
}

var contextLoadCmd = &cobra.Command{
	Use:   "load <index|path>",
	Short: "Print a historical snapshot's content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bot, err := openBot(cmd.Context())
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		content, err := bot.Context().LoadSnapshot(args[0])
		if err != nil {
			exitErr("load snapshot", err)
		}
		output(content)
	},
}

func init() {
	contextAppendCmd.Flags().String("section", "", "Append under this section header")
	contextHistoryCmd.Flags().IntVar(&historyLimitFlag, "limit", 0, "Maximum snapshots listed (0 = all)")
	contextCmd.AddCommand(contextShowCmd, contextUpdateCmd, contextAppendCmd,
		contextSectionCmd, contextHistoryCmd, contextLoadCmd)
	RootCmd.AddCommand(contextCmd)
}
