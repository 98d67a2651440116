// Package logs reads the daemon's log files for the CLI.
//
// The daemon writes one text log and one JSON events file per run and keeps a
// stable courier.log pointer at the active text log. Tail returns the last
// lines of a file together with the offset to resume from, and Follow polls
// from that offset until the context ends, restarting from the top when the
// file is truncated or replaced by a new run.
//
// Events files can be narrowed with an EventFilter, which matches on the
// event_type and level attributes the logging package writes.
package logs
