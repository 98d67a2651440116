package session

import (
	"path"
	"slices"
	"strings"
)

// Class is the upload tier of a file. Lower values are more urgent.
type Class int

const (
	ClassImmediateFolder Class = iota
	ClassImmediateFile
	ClassHigh
	ClassNormal
	ClassUnclassified
)

func (c Class) String() string {
	switch c {
	case ClassImmediateFolder:
		return "immediate-folder"
	case ClassImmediateFile:
		return "immediate"
	case ClassHigh:
		return "high"
	case ClassNormal:
		return "normal"
	default:
		return "unclassified"
	}
}

// FullFidelity reports whether the tier is only uploaded when full-fidelity
// uploads are allowed.
func (c Class) FullFidelity() bool {
	return c == ClassHigh || c == ClassNormal
}

const (
	highRankBase   = 100
	normalRankBase = 300
	// UnclassifiedRank sorts unknown files after every named one.
	UnclassifiedRank = 1000
)

// Priorities maps file and folder names onto upload tiers.
type Priorities struct {
	ImmediateFolders []string
	ImmediateFiles   []string
	HighFiles        []string
	NormalFiles      []string
}

// DefaultPriorities returns the stock tier tables.
func DefaultPriorities() Priorities {
	return Priorities{
		ImmediateFolders: []string{"crash/", "boot/"},
		ImmediateFiles:   []string{"qlog", "qcamera.ts"},
		HighFiles:        []string{"rlog"},
		NormalFiles:      []string{"fcamera.hevc", "dcamera.hevc", "ecamera.hevc"},
	}
}

// Classify returns the selection tier and in-directory rank of a file. A file
// under an immediate folder is ClassImmediateFolder whatever its name; the
// rank always follows the name.
func (p Priorities) Classify(sessionKey, name string) (Class, int) {
	class, rank := p.Rank(name)
	if p.InImmediateFolder(path.Join(sessionKey, name)) {
		class = ClassImmediateFolder
	}
	return class, rank
}

// Rank returns the name-based tier and in-directory rank of a file.
func (p Priorities) Rank(name string) (Class, int) {
	if i := slices.Index(p.ImmediateFiles, name); i >= 0 {
		return ClassImmediateFile, i
	}
	if i := slices.Index(p.HighFiles, name); i >= 0 {
		return ClassHigh, highRankBase + i
	}
	if i := slices.Index(p.NormalFiles, name); i >= 0 {
		return ClassNormal, normalRankBase + i + 1
	}
	return ClassUnclassified, UnclassifiedRank
}

// InImmediateFolder reports whether key contains any immediate folder marker.
// Matching is by substring so "crash/" catches both "crash/<session>/x" and
// nested layouts.
func (p Priorities) InImmediateFolder(key string) bool {
	for _, folder := range p.ImmediateFolders {
		if folder != "" && strings.Contains(key, folder) {
			return true
		}
	}
	return false
}
