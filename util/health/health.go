// Package health aggregates dependency health checks for a service.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type Check struct {
	Name  string
	Check func(context.Context, bool) (int, string, error)
}

// CheckAll runs every check and folds the results into a single status and
// JSON summary. Any failing dependency degrades the overall status to 503.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	var (
		overallStatus = http.StatusOK
		messages      = make([]string, 0, len(checks))
	)

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			overallStatus = http.StatusServiceUnavailable
		}

		msg := fmt.Sprintf(`{"resource": "%s", "status": "%d", "error": "%v", "message": "%s"}`, check.Name, status, err, message)
		messages = append(messages, msg)
	}

	return overallStatus, fmt.Sprintf(`{"status":"%d", "dependencies":[%s]}`, overallStatus, strings.Join(messages, ",")), nil
}
