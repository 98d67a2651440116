// Package daemon runs the upload loop and owns the single-instance lock.
//
// Loop.Step performs one iteration: read the device state, apply the network
// gate, scan the session root, pick the most urgent file, upload it, and
// publish a status snapshot. Loop.Run repeats Step and performs the sleeps it
// asks for. Daemon wraps a Loop with a flock so only one process uploads
// from a root at a time.
//
// Keep per-file policy in the uploader and scheduler packages; this package
// only sequences them.
package daemon
