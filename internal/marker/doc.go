// Package marker records durable "already uploaded" flags for session files.
//
// The default store writes the user.upload extended attribute; the sidecar
// store writes a <name>.uploaded file for filesystems that lack xattrs. Both
// treat any failure to read a marker as "marked" so that files deleted or
// made unreadable underneath the daemon are skipped instead of retried.
package marker
