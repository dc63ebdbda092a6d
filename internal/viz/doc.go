// Package viz is the terminal front end of the simulation.
//
// [Renderer] implements the controller's renderer contract by projecting the
// phase buffer onto a braille [Canvas] (or an ASCII density ramp) every
// frame. [Model] is a Bubble Tea panel that drives a controller: it ticks
// frames, tunes live parameters, stages structural ones and triggers
// regenerations.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Restart with staged parameters
//	1 2 3 - Single galaxy, universe, collision
//	0     - Reset parameters to the preset
//	↑ ↓   - Select a parameter
//	← →   - Nudge the selected parameter
//	Enter - Type a value for the selected parameter
//	O     - Toggle obscured particles
//	S     - Save a snapshot
//	G     - Toggle the rotation curve
//	B     - Toggle braille/ASCII
//	A D   - Orbit, W X tilt, + - zoom
//	Q     - Quit
package viz
