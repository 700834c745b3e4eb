// Package viz renders the crane in the terminal.
//
//   - [Canvas]: braille dot canvas, two by four dots per cell
//   - [Scene]: draws rail, cart, sling and payload onto a canvas
//   - [Model]: Bubble Tea live view running one control cycle per tick
//   - [ASCII]: asciigraph plot of one table column
//
// # Key Bindings
//
//	Space - Pause/Resume
//	S     - Single cycle while paused
//	R     - Rebuild the experiment
//	Tab   - Select tunable (plant masses, LQR weights)
//	Up/Dn - Scale the selected tunable
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
package viz
