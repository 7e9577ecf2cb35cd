package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Scheduler starts conformance workflows through a Temporal client.
type Scheduler struct {
	client    client.Client
	taskQueue string
	tolerance float64
}

// NewScheduler creates a Scheduler. tolerance is passed to every run, in degrees.
func NewScheduler(c client.Client, taskQueue string, tolerance float64) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue, tolerance: tolerance}
}

// ScheduleConformance starts a run for routeID. A run already in progress
// for the same route is returned instead of starting a second one.
func (s *Scheduler) ScheduleConformance(ctx context.Context, routeID string) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        "conformance-" + routeID,
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, ConformanceWorkflow, ConformanceInput{
		RouteID:   routeID,
		Tolerance: s.tolerance,
	})
	if err != nil {
		return "", fmt.Errorf("start conformance workflow: %w", err)
	}
	return run.GetRunID(), nil
}
