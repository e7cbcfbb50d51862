// Package tui renders the question review and the execution dashboard with
// Bubble Tea.
//
// Domain packages publish on an [event.Bus]; a [Bridge] forwards those
// events into a running program, so models never poll. When stdout is not
// a terminal the same events are printed as lines by a [LinePrinter].
package tui
