package cli

import (
	"github.com/spf13/cobra"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

var noRequestFlag bool

var coupleCmd = &cobra.Command{
	Use:   "couple <path>",
	Short: "Attach an external memory store at the given directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		if err := bot.External().Couple(ctx, args[0], !noRequestFlag); err != nil {
			exitErr("couple", err)
		}
		output(bot.External().Status())
	},
}

var uncoupleCmd = &cobra.Command{
	Use:   "uncouple",
	Short: "Detach the external memory store (never deletes it)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bot, err := openBot(cmd.Context())
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		bot.External().Uncouple()
		output(bot.External().Status())
	},
}

var extCmd = &cobra.Command{
	Use:   "ext",
	Short: "Operate on coupled external memory",
}

var extPutCmd = &cobra.Command{
	Use:   "put <path> <key> <value>",
	Short: "Couple to path and store a value in external memory",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		if err := bot.External().Couple(ctx, args[0], !noRequestFlag); err != nil {
			exitErr("couple", err)
		}
		if err := bot.Remember(ctx, model.ScopeExternal, args[1], args[2]); err != nil {
			exitErr("store external", err)
		}
		output(map[string]string{"key": args[1], "status": "stored"})
	},
}

var extGetCmd = &cobra.Command{
	Use:   "get <path> <key>",
	Short: "Couple to path and retrieve a value from external memory",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		if err := bot.External().Couple(ctx, args[0], !noRequestFlag); err != nil {
			exitErr("couple", err)
		}
		entry, err := bot.Recall(ctx, model.ScopeExternal, args[1])
		if err != nil {
			exitErr("retrieve external", err)
		}
		if formatFlag == "text" {
			output(string(entry.Value))
			return
		}
		output(entry)
	},
}

func init() {
	coupleCmd.Flags().BoolVar(&noRequestFlag, "no-request", false, "Do not record a pending grant request on denial")
	extCmd.AddCommand(extPutCmd, extGetCmd)
	RootCmd.AddCommand(coupleCmd, uncoupleCmd, extCmd)
}
