// Package daemonctl starts and stops a background courier daemon from the CLI.
//
// There is no control socket. A daemon is running while it holds the flock on
// the state directory's lock file, and its pid is read from the pid file it
// writes after start. Stop sends SIGTERM, waits for the lock to be released,
// and falls back to SIGKILL once the grace period runs out.
package daemonctl
