package analysis

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/property-research/internal/model"
)

// logRun writes the one-line summary of a finished run.
func logRun(log *zap.Logger, env *model.Envelope, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("status", string(env.Status)),
		zap.String("depth", string(env.AnalysisDepth)),
		zap.Duration("elapsed", elapsed),
	}
	if env.Summary != nil {
		fields = append(fields,
			zap.String("completeness", string(env.Summary.AnalysisCompleteness)),
			zap.Int("fields", env.Summary.PropertyFieldsExtracted),
			zap.Int("sections", len(env.Summary.SectionsFound)),
			zap.Int("findings", len(env.Summary.KeyFindings)),
		)
	}
	if env.RawData != nil {
		fields = append(fields, zap.Int("search_results", len(env.RawData.SearchResults)))
	}
	if env.StepFailed != "" {
		fields = append(fields, zap.String("step_failed", env.StepFailed))
	}
	if env.Error != "" {
		fields = append(fields, zap.String("error", env.Error))
	}

	if env.Status == model.TaskStatusCompleted {
		log.Info("analysis: run finished", fields...)
		return
	}
	log.Warn("analysis: run finished", fields...)
}
