// Package logging constructs the bot's zap logger.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// New builds a logger writing JSON lines to bot.log under dir. With
// verbose set the level drops to debug and output also goes to stderr.
// An empty dir yields a no-op logger.
func New(dir string, verbose bool) (*zap.Logger, error) {
	if dir == "" {
		if verbose {
			return zap.NewDevelopment()
		}
		return zap.NewNop(), nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(dir, "bot.log")}
	cfg.ErrorOutputPaths = []string{filepath.Join(dir, "bot.log")}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
	}
	return cfg.Build()
}
