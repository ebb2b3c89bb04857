package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"clipper/internal/fileutil"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/services/detector"
)

// Rejection reasons recorded in the ledger.
const (
	ReasonCorruptAsset    = "corrupt_asset"
	ReasonUnwantedContent = "unwanted_content"
	ReasonTransformFailed = "transform_failed"
)

// MediaTransformer is the slice of the media toolkit the pipeline needs.
type MediaTransformer interface {
	Normalize(ctx context.Context, src, dst string) error
	Crop(ctx context.Context, src, dst, aspect string) error
}

// ContentDetector analyzes a cropped clip's frames.
type ContentDetector interface {
	Detect(ctx context.Context, videoPath string) (detector.Detection, error)
}

// DecisionLedger records the permanent verdicts.
type DecisionLedger interface {
	AddApproved(ctx context.Context, clipID string, metadata map[string]string) error
	AddRejected(ctx context.Context, clipID, reason string, confidence float64, metadata map[string]string) error
}

// Outcome is the result of validating one clip.
type Outcome struct {
	ClipID       string
	Approved     bool
	ApprovedPath string
	Reason       string
	Confidence   float64
}

// Pipeline runs a downloaded clip through normalize, crop, detection, and
// the final approve/reject decision.
type Pipeline struct {
	pool     Pool
	media    MediaTransformer
	detector ContentDetector
	ledger   DecisionLedger
	aspect   string
	logger   *slog.Logger
}

// NewPipeline wires a validation pipeline over the shared pool.
func NewPipeline(pool Pool, media MediaTransformer, det ContentDetector, ledger DecisionLedger, aspect string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		pool:     pool,
		media:    media,
		detector: det,
		ledger:   ledger,
		aspect:   aspect,
		logger:   logging.NewComponentLogger(logger, "validation"),
	}
}

// Run validates one raw download. Transient collaborator failures return a
// retryable error with the working files left in place; every other path
// ends in a recorded approve or reject decision.
func (p *Pipeline) Run(ctx context.Context, jobID, clipID, rawPath string) (Outcome, error) {
	outcome := Outcome{ClipID: clipID}
	if jobID == "" || clipID == "" || rawPath == "" {
		return outcome, services.Wrap(services.ErrValidation, "downloading_candidates", "validate clip",
			"job id, clip id, and raw path required", nil)
	}
	if !fileutil.Exists(rawPath) {
		return outcome, services.Wrap(services.ErrValidation, "downloading_candidates", "validate clip",
			fmt.Sprintf("raw file missing: %s", rawPath), nil)
	}
	if err := p.pool.EnsureDirectories(); err != nil {
		return outcome, services.Wrap(services.ErrResource, "downloading_candidates", "validate clip", "prepare pool", err)
	}

	transformPath := p.pool.TransformPath(clipID)
	if err := p.media.Normalize(ctx, rawPath, transformPath); err != nil {
		return p.handleTransformError(ctx, outcome, clipID, rawPath, transformPath, "normalize", err)
	}
	if err := p.media.Crop(ctx, transformPath, transformPath, p.aspect); err != nil {
		return p.handleTransformError(ctx, outcome, clipID, rawPath, transformPath, "crop", err)
	}

	validatingPath := p.pool.ValidatingPath(jobID, clipID)
	if err := fileutil.Rename(transformPath, validatingPath); err != nil {
		return outcome, services.Wrap(services.ErrResource, "downloading_candidates", "validate clip",
			"move to validating", err)
	}

	detection, err := p.detector.Detect(ctx, validatingPath)
	if err != nil {
		if services.IsRetryable(err) {
			// Leave the tagged file for the retry; the sweep reclaims it
			// if the job dies first.
			return outcome, err
		}
		// Non-retryable detection failure means the file could not be
		// analyzed at all. Treat it like a corrupt asset.
		return p.reject(ctx, outcome, clipID, rawPath, validatingPath, ReasonCorruptAsset, 0)
	}

	outcome.Confidence = detection.Confidence
	switch {
	case detection.FramesProcessed == 0:
		// Nothing decodable at all. Blacklist regardless of confidence.
		return p.reject(ctx, outcome, clipID, rawPath, validatingPath, ReasonCorruptAsset, detection.Confidence)
	case detection.UnwantedContent:
		return p.reject(ctx, outcome, clipID, rawPath, validatingPath, ReasonUnwantedContent, detection.Confidence)
	}

	approvedPath := p.pool.ApprovedPath(clipID)
	if err := fileutil.Rename(validatingPath, approvedPath); err != nil {
		return outcome, services.Wrap(services.ErrResource, "downloading_candidates", "validate clip",
			"move to approved", err)
	}
	metadata := map[string]string{
		"frames_processed":    strconv.Itoa(detection.FramesProcessed),
		"frames_with_content": strconv.Itoa(detection.FramesWithContent),
	}
	if detection.Sample != "" {
		metadata["sample"] = detection.Sample
	}
	if err := p.ledger.AddApproved(ctx, clipID, metadata); err != nil {
		return outcome, services.Wrap(services.ErrResource, "downloading_candidates", "validate clip",
			"record approval", err)
	}
	p.cleanupEarlierCopies(clipID, rawPath)

	outcome.Approved = true
	outcome.ApprovedPath = approvedPath
	p.logger.Info("clip approved",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldClipID, clipID),
		logging.Float64("confidence", detection.Confidence),
	)
	return outcome, nil
}

func (p *Pipeline) handleTransformError(ctx context.Context, outcome Outcome, clipID, rawPath, transformPath, op string, err error) (Outcome, error) {
	if services.IsRetryable(err) || errors.Is(err, services.ErrValidation) {
		return outcome, err
	}
	_ = fileutil.RemoveIfExists(transformPath)
	rejected, rejectErr := p.reject(ctx, outcome, clipID, rawPath, "", ReasonTransformFailed, 0)
	if rejectErr != nil {
		return rejected, rejectErr
	}
	p.logger.Warn("clip rejected after transform failure",
		logging.String(logging.FieldClipID, clipID),
		logging.String("operation", op),
		logging.Error(err),
	)
	return rejected, nil
}

func (p *Pipeline) reject(ctx context.Context, outcome Outcome, clipID, rawPath, workingPath, reason string, confidence float64) (Outcome, error) {
	if workingPath != "" {
		_ = fileutil.RemoveIfExists(workingPath)
	}
	p.cleanupEarlierCopies(clipID, rawPath)
	if err := p.ledger.AddRejected(ctx, clipID, reason, confidence, nil); err != nil {
		return outcome, services.Wrap(services.ErrResource, "downloading_candidates", "validate clip",
			"record rejection", err)
	}
	outcome.Approved = false
	outcome.Reason = reason
	outcome.Confidence = confidence
	p.logger.Info("clip rejected",
		logging.String(logging.FieldClipID, clipID),
		logging.String("reason", reason),
		logging.Float64("confidence", confidence),
	)
	return outcome, nil
}

// cleanupEarlierCopies removes the raw download and any stale transform
// copy once a decision is final.
func (p *Pipeline) cleanupEarlierCopies(clipID, rawPath string) {
	_ = fileutil.RemoveIfExists(rawPath)
	_ = fileutil.RemoveIfExists(p.pool.TransformPath(clipID))
	if raws, err := p.pool.RawFiles(clipID); err == nil {
		for _, path := range raws {
			_ = fileutil.RemoveIfExists(path)
		}
	}
}
