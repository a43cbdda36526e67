package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go_kunquant/core"

	"go.uber.org/zap"
)

// RemovePartialOutputs returns a cleanup function deleting "*.partial"
// files left in dir by runs that were interrupted. Failures are logged and
// never block shutdown.
//
//	mgr.Register("partial-outputs", shutdown.PriorityFiles, shutdown.RemovePartialOutputs(logger, outDir))
func RemovePartialOutputs(logger *zap.Logger, dir string) core.ShutdownFunc {
	return func(ctx context.Context) error {
		removePartials(ctx, logger, dir)
		return nil
	}
}

func removePartials(ctx context.Context, logger *zap.Logger, dir string) (removed, failed int) {
	if dir == "" {
		return 0, 0
	}
	pattern := filepath.Join(dir, "*"+core.PartialSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		logger.Warn("Failed to list partial outputs", zap.String("pattern", pattern), zap.Error(err))
		return 0, 0
	}

	for _, match := range matches {
		if ctx.Err() != nil {
			logger.Warn("Shutdown deadline reached during output cleanup",
				zap.Int("remaining", len(matches)-removed-failed),
			)
			return removed, failed
		}
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			failed++
			logger.Warn("Failed to remove partial output",
				zap.String("file", filepath.Base(match)),
				zap.Error(err),
			)
			continue
		}
		removed++
	}

	if removed > 0 || failed > 0 {
		logger.Info("Removed partial outputs",
			zap.String("dir", dir),
			zap.Int("removed", removed),
			zap.Int("failed", failed),
		)
	}
	return removed, failed
}
