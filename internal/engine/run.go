package engine

import (
	"context"

	"AnonVitals/internal/engine/scheduler"
	"AnonVitals/internal/report"
)

// RunOutcome is the terminal result of one engine run.
type RunOutcome struct {
	Status report.RunStatus
	Report report.RunReport
	Err    error
}

// Run drives the scheduler to completion and folds the reporter's aggregate
// into a RunOutcome. A scheduler error other than cancellation is fatal;
// skipped windows and sink failures only degrade the status.
func Run(ctx context.Context, sched *scheduler.Scheduler, reporter *report.Reporter) RunOutcome {
	err := sched.Run(ctx)

	snap := reporter.Snapshot()
	out := RunOutcome{Status: snap.Status, Report: snap, Err: err}
	if err != nil && ctx.Err() == nil {
		out.Status = report.RunFatal
	}
	return out
}
