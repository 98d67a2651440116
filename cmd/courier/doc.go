// Package main hosts the courier CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the upload daemon in the foreground or
// detached (start/stop), reports its status from the published snapshot and
// lock file, previews the upload order for the session root, tails the run
// logs, and exposes the upload ledger. Commands read state from disk rather
// than talking to the daemon, so they work whether or not a daemon is up.
package main
