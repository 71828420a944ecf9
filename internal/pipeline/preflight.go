package pipeline

import (
	"context"
	"fmt"

	"lingoflow/internal/services"
)

// Check is one startup dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// CheckResult pairs a probe with its outcome.
type CheckResult struct {
	Name string
	Err  error
}

// RunChecks executes every probe and returns all results, so callers can
// report the full picture instead of stopping at the first failure.
func RunChecks(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, CheckResult{Name: check.Name, Err: check.Run(ctx)})
	}
	return results
}

// FirstFailure converts the first failed probe into a startup-fatal error.
func FirstFailure(results []CheckResult) error {
	for _, result := range results {
		if result.Err != nil {
			return services.Wrap(services.ErrConfiguration, "pipeline", "preflight",
				fmt.Sprintf("%s check failed", result.Name), result.Err)
		}
	}
	return nil
}
