package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// ConformanceInput is the input for the conformance workflow.
type ConformanceInput struct {
	RouteID   string
	Tolerance float64
	Meters    bool
}

// ConformanceResult summarizes a finished run.
type ConformanceResult struct {
	RouteID       string
	RawPoints     int
	Removed       int
	SnappedPoints int
	Fallback      bool
	Saved         bool
	Warnings      []string
}

// ConformanceWorkflow loads a stored route, simplifies its waypoints, snaps
// them to the road network and stores the result. A snap fallback stores
// only the simplified waypoints, and nothing is written when neither step
// changed the route.
func ConformanceWorkflow(ctx workflow.Context, input ConformanceInput) (*ConformanceResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting conformance workflow", "routeID", input.RouteID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"NotFound", "Validation"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Load waypoints
	var raw []domain.GeoPoint
	if err := workflow.ExecuteActivity(ctx, "LoadRoutePoints", input.RouteID).Get(ctx, &raw); err != nil {
		return nil, err
	}
	res := &ConformanceResult{RouteID: input.RouteID, RawPoints: len(raw)}
	if len(raw) < domain.MinPathPoints {
		res.Warnings = append(res.Warnings, "route has too few points to conform")
		return res, nil
	}

	// Step 2: Simplify
	var simplified []domain.GeoPoint
	if err := workflow.ExecuteActivity(ctx, "SimplifyPoints", raw, input.Tolerance, input.Meters).Get(ctx, &simplified); err != nil {
		return nil, err
	}
	res.Removed = len(raw) - len(simplified)

	// Step 3: Snap
	var snap SnapOutcome
	if err := workflow.ExecuteActivity(ctx, "SnapPoints", input.RouteID, simplified).Get(ctx, &snap); err != nil {
		return nil, err
	}
	res.Fallback = snap.Fallback
	res.Warnings = append(res.Warnings, snap.Warnings...)
	if !snap.Fallback {
		res.SnappedPoints = len(snap.Points)
	}

	if snap.Fallback && res.Removed == 0 {
		logger.Info("Conformance made no changes", "routeID", input.RouteID)
		return res, nil
	}

	// Step 4: Store
	var snapped []domain.GeoPoint
	if !snap.Fallback {
		snapped = snap.Points
	}
	if err := workflow.ExecuteActivity(ctx, "SaveConformed", input.RouteID, simplified, snapped).Get(ctx, nil); err != nil {
		logger.Warn("saving conformed route failed", "error", err)
		return nil, err
	}
	res.Saved = true

	logger.Info("Conformance stored", "routeID", input.RouteID, "removed", res.Removed, "snapped", res.SnappedPoints)
	return res, nil
}
