// Package analysis extracts frequency content from sampled signals.
//
// The crane uses it to find how fast the payload swings:
//
//	f, err := analysis.DominantFrequency(sway, dt)
package analysis
