// Package scheduler picks the next file to upload from a scanned candidate
// list.
package scheduler

import "courier/internal/session"

// tiers lists the selection passes in order. Each pass restarts from the top
// of the candidate list, so an urgent file in the newest session beats a less
// urgent file in the oldest one.
var tiers = []session.Class{
	session.ClassImmediateFolder,
	session.ClassImmediateFile,
	session.ClassHigh,
	session.ClassNormal,
}

// SelectNext returns the first candidate of the most urgent non-empty tier.
// High and Normal tiers are only considered when allowFullFidelity is set.
// Unclassified files are never selected.
func SelectNext(files []session.File, allowFullFidelity bool) (session.File, bool) {
	for _, tier := range tiers {
		if tier.FullFidelity() && !allowFullFidelity {
			break
		}
		for _, f := range files {
			if f.Class == tier {
				return f, true
			}
		}
	}
	return session.File{}, false
}

// Order returns the sequence SelectNext would produce if every selected file
// were uploaded and removed from the list in turn.
func Order(files []session.File, allowFullFidelity bool) []session.File {
	out := make([]session.File, 0, len(files))
	for _, tier := range tiers {
		if tier.FullFidelity() && !allowFullFidelity {
			break
		}
		for _, f := range files {
			if f.Class == tier {
				out = append(out, f)
			}
		}
	}
	return out
}
