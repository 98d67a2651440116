// Package ledger keeps a SQLite history of upload attempts.
//
// The history is informational: the upload loop never consults it to decide
// what to send. When uploader.marker_backend is "ledger" the same database
// also stores upload markers in place of extended attributes, which suits
// filesystems that do not support xattrs.
package ledger
