package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

var (
	memScopeFlag string
	memRawFlag   bool
)

var memCmd = &cobra.Command{
	Use:   "mem",
	Short: "Store and retrieve key/value memory",
}

var memPutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Store a value (last write wins)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		var value any = args[1]
		if memRawFlag {
			var raw json.RawMessage
			if err := json.Unmarshal([]byte(args[1]), &raw); err != nil {
				exitErr("parse json value", err)
			}
			value = raw
		}

		if err := bot.Remember(ctx, model.Scope(memScopeFlag), args[0], value); err != nil {
			exitErr("store", err)
		}
		output(map[string]string{"scope": memScopeFlag, "key": args[0], "status": "stored"})
	},
}

var memGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Retrieve a value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		entry, err := bot.Recall(ctx, model.Scope(memScopeFlag), args[0])
		if err != nil {
			exitErr("retrieve", err)
		}
		if formatFlag == "text" {
			output(string(entry.Value))
			return
		}
		output(entry)
	},
}

var memRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete an internal memory entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		if err := bot.Store().DeleteMemory(ctx, model.ScopeInternal, args[0]); err != nil {
			exitErr("delete", err)
		}
		output(map[string]string{"key": args[0], "status": "deleted"})
	},
}

func init() {
	memCmd.PersistentFlags().StringVar(&memScopeFlag, "scope", "internal", "Memory scope: internal or external")
	memPutCmd.Flags().BoolVar(&memRawFlag, "json", false, "Treat the value as raw JSON instead of a string")
	memCmd.AddCommand(memPutCmd, memGetCmd, memRmCmd)
	RootCmd.AddCommand(memCmd)
}
