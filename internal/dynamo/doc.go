// Package dynamo provides the core primitives shared by plants, control
// algorithms and the simulation loop.
//
//   - [State], [Control]: plain numeric vectors
//   - [Signal], [Parameter]: descriptors of physical quantities and constants
//   - [StateSpace]: the (A, B, C, D) quadruple of a linear model
//   - [Table]: labelled time series, one column per signal
//   - [Metric], [Observer], [Configurable]: hooks used by the simulator and UIs
//
// # Errors
//
// Every failure in the core wraps one of the sentinel errors in errors.go,
// so callers classify with [errors.Is]:
//
//	if errors.Is(err, dynamo.ErrStateBounds) {
//	    // state left unchanged
//	}
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent mutation. Independent runs
// must own independent values.
package dynamo
