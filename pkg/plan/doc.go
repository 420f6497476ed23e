// Package plan defines experiment plans: restartable producers of messages for
// the engine, written in direct style and run as two-way generators.
//
// A Plan's Generate validates its parameters and returns a Generator. Each call
// to Generator.Next hands the plan the result of the previous message, so a plan
// can branch on what it reads:
//
//	p := plan.Func("peek", func(ctx context.Context, yield plan.Yield) error {
//		res, err := yield(domain.Read(det))
//		if err != nil {
//			return err
//		}
//		...
//	})
//
// The built-in plans (Count, Scan, ListScan, the product scans and AdaptiveScan)
// keep settable parameters: Set changes the stored defaults, With returns a
// one-shot plan with overrides. Build creates any of them from a declarative Spec.
package plan
