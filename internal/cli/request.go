package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var thresholdFlag float64

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Inspect the request/response ledger",
}

var requestFindCmd = &cobra.Command{
	Use:   "find <text>",
	Short: "Find the exact (normalized) request record for text",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		rec, err := bot.Store().FindExact(ctx, joinArgs(args))
		if err != nil {
			exitErr("find request", err)
		}
		output(rec)
	},
}

var requestSimilarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "List stored requests similar to text, best match first",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		threshold := thresholdFlag
		if !cmd.Flags().Changed("threshold") {
			threshold = bot.Config().Ledger.SimilarityThreshold
		}

		similar, err := bot.Store().FindSimilar(ctx, joinArgs(args), threshold)
		if err != nil {
			exitErr("find similar", err)
		}
		output(similar)
	},
}

var requestAttemptsCmd = &cobra.Command{
	Use:   "attempts <hash>",
	Short: "List response attempts for a request hash, in order",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		attempts, err := bot.Store().ListAttempts(ctx, args[0])
		if err != nil {
			exitErr("list attempts", err)
		}
		output(attempts)
	},
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func init() {
	requestSimilarCmd.Flags().Float64Var(&thresholdFlag, "threshold", 0.5, "Minimum similarity score in [0,1]")
	requestCmd.AddCommand(requestFindCmd, requestSimilarCmd, requestAttemptsCmd)
	RootCmd.AddCommand(requestCmd)
}
