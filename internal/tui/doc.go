// Package tui is the live dashboard shown with --tui: the latest sample, a
// CPU history chart and a memory sparkline, refreshed as the monitor
// persists samples.
package tui
