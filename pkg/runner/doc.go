/*
Package runner executes plans on behalf of a host process.

It adds what the engine deliberately leaves out: documents are recorded in a
ports.DocumentStore, runs can be serialized across processes with a
ports.DistributedLocker, progress can be printed as a live table, and OS
interrupts abort the active run (its post-run hook still executes).

# Usage

	r := runner.NewRunner(eng,
		runner.WithStore(memory.NewStore()),
		runner.WithTable(os.Stdout),
		runner.WithSignals(true),
	)

	res, err := r.RunNamed(ctx, "peak", nil)
*/
package runner
