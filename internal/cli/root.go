// Package cli implements the botmem CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ctavolazzi/bot-memory/internal/agent"
	"github.com/ctavolazzi/bot-memory/internal/llm"
	"github.com/ctavolazzi/bot-memory/internal/logging"
)

var (
	dirFlag     string
	formatFlag  string
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "botmem",
	Short: "Persistent memory substrate for a conversational bot",
	Long:  "Durable bot memory: internal and coupled external key/value state, a thought journal, a request ledger, and a self-trimming context document. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Bot working directory (default: $BOTMEM_DIR or ~/.botmem)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose logging")
}

func workingDir() string {
	if dirFlag != "" {
		return dirFlag
	}
	if env := os.Getenv("BOTMEM_DIR"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".botmem")
}

func openBot(ctx context.Context) (*agent.Bot, error) {
	dir := workingDir()

	cfg, err := agent.LoadConfig(filepath.Join(dir, "botmem.yaml"))
	if err != nil {
		return nil, err
	}

	log, err := logging.New(filepath.Join(dir, "logs"), verboseFlag)
	if err != nil {
		return nil, err
	}

	var gen llm.Generator
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		gen, err = llm.NewGemini(ctx, key, cfg.Model, cfg.SystemInstruction())
		if err != nil {
			return nil, err
		}
	} else {
		gen = llm.Unavailable{Reason: "GEMINI_API_KEY not set"}
	}

	return agent.New(ctx, agent.Options{
		WorkingDir:    dir,
		WorkspaceRoot: os.Getenv("BOTMEM_WORKSPACE"),
		Config:        cfg,
		Generator:     gen,
		Logger:        log,
	})
}

func output(v any) {
	if formatFlag == "text" {
		fmt.Println(v)
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode output", err)
	}
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
