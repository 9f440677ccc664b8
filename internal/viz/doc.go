// Package viz draws the simulator in the terminal with Bubble Tea.
//
//   - [Model]: steps an environment with a policy on every tick and shows
//     top-down and side projections, or a perspective wireframe, next to a
//     status panel with rotor commands and a cost chart
//   - [Picker]: preset menu that opens a [Model]
//   - [Recorder]: env.Renderer that forwards frames over a channel
//   - [Canvas]: braille pixel canvas
//
// # Key Bindings
//
//	Space     pause/resume
//	n         single step while paused
//	r         reset the episode
//	arrows    move the target in x/y, PgUp/PgDn in z
//	v         toggle the perspective view
//	Tab [ ]   select and tune a policy gain
//	t         cycle colour themes
//	?         help overlay
package viz
