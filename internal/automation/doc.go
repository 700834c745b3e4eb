// Package automation runs batches of crane experiments: randomised
// robustness trials around a base config, and scripted scenarios read
// from YAML.
package automation
