package errors

type ExitCode int

const (
	// AbortedExitCode is the fixed status the whole run exits with after an
	// interrupt or a pool-level fail-fast sweep.
	AbortedExitCode ExitCode = 1

	// NoJobsFinishedExitCode marks a queue run where not a single job
	// produced a result, as opposed to every job passing.
	NoJobsFinishedExitCode ExitCode = 2

	// CouldNotSpawnExitCode is the synthesized result of a task whose child
	// process never started (missing binary, bad permissions, ...). Outside
	// the 0-255 range a process can legitimately exit with.
	CouldNotSpawnExitCode ExitCode = 666
)

// Max returns the larger of two exit codes. Aggregates across tasks, chains
// and jobs are all max-folds with 0 meaning everything passed.
func Max(a, b ExitCode) ExitCode {
	if a > b {
		return a
	}
	return b
}
