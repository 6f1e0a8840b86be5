package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ctavolazzi/bot-memory/internal/store"
)

var (
	thoughtTagsFlag   []string
	thoughtParentFlag int64
	thoughtTypeFlag   string
	thoughtLimitFlag  int
)

var thoughtCmd = &cobra.Command{
	Use:   "thought",
	Short: "Record and query the reasoning journal",
}

var thoughtAddCmd = &cobra.Command{
	Use:   "add <type> <content>",
	Short: "Append a thought (tags derived from content when omitted)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		var tags []string
		if cmd.Flags().Changed("tags") {
			tags = thoughtTagsFlag
		}
		var parent *int64
		if cmd.Flags().Changed("parent") {
			parent = &thoughtParentFlag
		}

		rec, err := bot.Store().RecordThought(ctx, args[0], args[1], tags, parent)
		if err != nil {
			exitErr("record thought", err)
		}
		output(rec)
	},
}

var thoughtQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List thoughts matching type/tag/parent filters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		filter := store.ThoughtFilter{
			Type:  thoughtTypeFlag,
			Tags:  thoughtTagsFlag,
			Limit: thoughtLimitFlag,
		}
		if cmd.Flags().Changed("parent") {
			filter.ParentID = &thoughtParentFlag
		}

		thoughts, err := bot.Store().QueryThoughts(ctx, filter)
		if err != nil {
			exitErr("query thoughts", err)
		}
		output(thoughts)
	},
}

var thoughtChainCmd = &cobra.Command{
	Use:   "chain <id>",
	Short: "Show the ancestry path of a thought, root first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			exitErr("parse id", err)
		}

		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		chain, err := bot.Store().ThoughtChain(ctx, id)
		if err != nil {
			exitErr("thought chain", err)
		}
		output(chain)
	},
}

func init() {
	thoughtAddCmd.Flags().StringSliceVar(&thoughtTagsFlag, "tags", nil, "Explicit tags")
	thoughtAddCmd.Flags().Int64Var(&thoughtParentFlag, "parent", 0, "Parent thought id")
	thoughtQueryCmd.Flags().StringVar(&thoughtTypeFlag, "type", "", "Filter by thought type")
	thoughtQueryCmd.Flags().StringSliceVar(&thoughtTagsFlag, "tags", nil, "Filter by tags (superset match)")
	thoughtQueryCmd.Flags().Int64Var(&thoughtParentFlag, "parent", 0, "Filter by parent id")
	thoughtQueryCmd.Flags().IntVar(&thoughtLimitFlag, "limit", 0, "Maximum results (0 = all)")
	thoughtCmd.AddCommand(thoughtAddCmd, thoughtQueryCmd, thoughtChainCmd)
	RootCmd.AddCommand(thoughtCmd)
}
