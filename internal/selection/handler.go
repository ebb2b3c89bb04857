package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"clipper/internal/candidates"
	"clipper/internal/config"
	"clipper/internal/fileutil"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/stage"
)

const planFilename = "selection.json"

// PlanPath is where the handler persists the assembly plan for a job.
func PlanPath(workDir string) string {
	return filepath.Join(workDir, planFilename)
}

// SavePlan persists a plan atomically.
func SavePlan(path string, plan *Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return fileutil.WriteAtomic(path, data, 0o644)
}

// LoadPlan reads a plan written by SavePlan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return &plan, nil
}

// Handler is the selecting_candidates stage. It turns the settled manifest
// into an ordered assembly plan.
type Handler struct {
	cfg     *config.Config
	logger  *slog.Logger
	planner *Planner
}

// NewHandler constructs the handler with a time-seeded shuffle.
func NewHandler(cfg *config.Config, logger *slog.Logger) *Handler {
	return NewHandlerWithPlanner(cfg, logger, NewPlanner(rand.New(rand.NewSource(time.Now().UnixNano()))))
}

// NewHandlerWithPlanner allows injecting a seeded planner (used in tests).
func NewHandlerWithPlanner(cfg *config.Config, logger *slog.Logger, planner *Planner) *Handler {
	return &Handler{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "selection"),
		planner: planner,
	}
}

func (h *Handler) Name() queue.Status { return queue.StatusSelectingCandidates }

// Done is satisfied once a plan file exists for the job.
func (h *Handler) Done(_ context.Context, job *queue.Job) (bool, error) {
	return fileutil.Exists(PlanPath(job.WorkDir)), nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	if job.ManifestPath == "" || !fileutil.Exists(job.ManifestPath) {
		return services.Wrap(services.ErrValidation, "selecting_candidates", "validate inputs",
			"candidate manifest missing", nil)
	}
	if job.TargetDuration <= 0 {
		return services.Wrap(services.ErrValidation, "selecting_candidates", "validate inputs",
			"target duration not recorded; audio analysis did not run", nil)
	}
	manifest, err := candidates.LoadManifest(job.ManifestPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "selecting_candidates", "load manifest",
			"candidate manifest unreadable", err)
	}

	pool := make([]Clip, 0, len(manifest.Clips))
	for _, clip := range manifest.Usable() {
		duration := clip.MeasuredDuration
		if duration <= 0 {
			duration = clip.Duration
		}
		pool = append(pool, Clip{ID: clip.ClipID, Path: clip.LocalPath, Duration: duration})
	}

	plan, err := h.planner.Plan(pool, job.TargetDuration)
	if err != nil {
		if errors.Is(err, ErrNoCandidates) {
			return services.Wrap(services.ErrProcessing, "selecting_candidates", "plan",
				"no approved candidates to select from", err)
		}
		return err
	}
	if plan.Shortfall {
		job.MergeStageInfo(queue.StatusSelectingCandidates, queue.StageInfo{
			Warning: fmt.Sprintf("pool covers %.1fs of a %.1fs target", plan.TotalDuration, job.TargetDuration),
		})
		logger.Warn("candidate pool short of target",
			logging.Float64("selected_duration", plan.TotalDuration),
			logging.Float64("target_duration", job.TargetDuration),
		)
	}

	if err := SavePlan(PlanPath(job.WorkDir), plan); err != nil {
		return services.Wrap(services.ErrResource, "selecting_candidates", "save plan",
			"write selection plan", err)
	}
	logger.Info("assembly plan written",
		logging.Int("clips", len(plan.Clips)),
		logging.Float64("total_duration", plan.TotalDuration),
	)
	return nil
}

func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("selecting_candidates")
}
