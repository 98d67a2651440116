// Package preflight provides readiness checks for the paths, marker storage,
// and transport that the uploader depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll once at startup and logs every failure. A
//     failing check does not stop the daemon because the session root or the
//     network may appear later.
//   - The CLI "courier status" command renders the same results as a table.
//
// Checks for disabled features are skipped.
package preflight
