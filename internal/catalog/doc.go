// Package catalog discovers upload candidates under the session root.
//
// A Scanner walks session directories in creation order, skips directories
// that still hold a *.lock entry, drops files the marker store reports as
// uploaded, and sorts the rest by upload rank. It also keeps the
// immediate-queue counters published in the daemon status. ClearLocks is the
// one-shot startup sweep for locks abandoned by a crashed recorder.
package catalog
