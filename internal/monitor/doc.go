// Package monitor runs the sampling loop: one tick per interval measures the
// target, persists the sample and notifies observers, until Stop is called,
// the context is canceled, the target exits, or a tick fails.
//
// Ticks never overlap. Stop and context cancellation are cooperative: an
// in-flight measurement or write always completes, and the inter-tick wait
// wakes immediately.
package monitor
