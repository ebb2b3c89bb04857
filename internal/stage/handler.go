package stage

import (
	"context"

	"clipper/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Done lets resumed jobs skip stages whose outputs already exist, so a crash
// mid-pipeline never repeats completed work.
type Handler interface {
	Name() queue.Status
	Done(context.Context, *queue.Job) (bool, error)
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
