// Package preflight provides system validation and pre-flight checks
// to ensure CodeNav can run successfully before starting operations.
//
// The package validates:
//   - Disk space availability (minimum 100MB)
//   - Memory availability (minimum 1GB, checked against a fixed 4GB estimate)
//   - Write permissions in project directory
//   - File descriptor limits (minimum 1024)
//   - Embedder model directory and disk space (warnings only)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, "/path/to/project")
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
