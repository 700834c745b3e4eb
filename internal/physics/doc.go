// Package physics provides concrete plants built on [plant.Model].
//
//   - [Crane1D]: gantry crane with a hoisted payload, linearised around the
//     current sling length
//
// Each plant supplies its descriptors and a linearisation; simulation,
// bounds checking and parameter storage come from the embedded model:
//
//	crane, _ := physics.NewCrane1D(nil)
//	_, y, _ := crane.Step(dynamo.Control{1, 1}, 0.1)
//	_ = crane.UpdateMatrices() // re-linearise at the new sling length
package physics
