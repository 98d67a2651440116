// Package session holds the shared data model of the upload daemon: session
// directories and their chronological ordering, candidate files and their
// upload tiers, per-attempt outcomes, and the running Stats view.
package session
