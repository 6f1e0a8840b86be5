package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ctavolazzi/bot-memory/internal/store"
)

var (
	grantReadFlag  bool
	grantWriteFlag bool
	grantTTLFlag   time.Duration
)

var permsCmd = &cobra.Command{
	Use:   "perms",
	Short: "Inspect and approve permission grants for workspace-external paths",
}

var permsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List permission grants, pending requests included",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		grants, err := bot.Store().ListGrants(ctx)
		if err != nil {
			exitErr("list grants", err)
		}
		output(grants)
	},
}

var permsGrantCmd = &cobra.Command{
	Use:   "grant <path-prefix>",
	Short: "Approve access to a path prefix (replaces a pending request)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			exitErr("open bot", err)
		}
		defer bot.Close()

		p := store.GrantParams{
			PathPrefix: args[0],
			AllowRead:  grantReadFlag,
			AllowWrite: grantWriteFlag,
		}
		if grantTTLFlag > 0 {
			expires := time.Now().Add(grantTTLFlag)
			p.ExpiresAt = &expires
		}

		grant, err := bot.Store().RecordGrant(ctx, p)
		if err != nil {
			exitErr("record grant", err)
		}
		output(grant)
	},
}

func init() {
	permsGrantCmd.Flags().BoolVar(&grantReadFlag, "read", true, "Allow reads")
	permsGrantCmd.Flags().BoolVar(&grantWriteFlag, "write", false, "Allow writes")
	permsGrantCmd.Flags().DurationVar(&grantTTLFlag, "ttl", 0, "Expiry as a duration (0 = never)")
	permsCmd.AddCommand(permsListCmd, permsGrantCmd)
	RootCmd.AddCommand(permsCmd)
}
