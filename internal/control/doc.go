// Package control computes feedback for linear plants.
//
// Algorithms implement [Algorithm]; the simulator negates their output and
// adds the reference, so ControlInput returns K·x as is:
//
//   - [LQR]: infinite-horizon linear-quadratic regulator, gains from the
//     continuous algebraic Riccati equation ([SolveCARE])
//   - [Static]: fixed gain matrix
//   - [Open]: zero feedback, for open-loop runs
//
// Optional capabilities are separate interfaces discovered by type
// assertion: [Relinearizer] for algorithms that re-solve when the plant is
// re-linearised, [GainReporter] for algorithms with reportable gains, and
// [dynamo.Configurable] for live tuning.
//
//	lqr, err := control.NewLQR(sys.A, sys.B, q, r, crane.OutputSignals())
//	u, err := lqr.ControlInput(crane.State())
package control
