package pathmap

import (
	"path/filepath"
	"strings"
)

// IsWindowsPath reports whether p uses the drive-letter (C:\) or network
// share (\\server) convention.
func IsWindowsPath(p string) bool {
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	return len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && p[2] == '\\'
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// SplitPath splits p into segments. The first segment is the root when p is
// absolute: `\\` for a network share, "C:" for a drive, or the host root.
//
//	\\srv\share\a  -> [\\ srv share a]
//	C:\a\b         -> [C: a b]
//	/mnt/a         -> [/ mnt a]
func SplitPath(p string) []string {
	if IsWindowsPath(p) {
		return splitWindows(p)
	}
	return splitHost(p)
}

// splitWindows accepts both separators so a Windows mount joined with host
// separators on another OS still splits cleanly.
func splitWindows(p string) []string {
	var segs []string
	if strings.HasPrefix(p, `\\`) {
		segs = append(segs, `\\`)
	} else {
		segs = append(segs, strings.ToUpper(p[:2]))
	}
	rest := p[2:]
	for _, s := range strings.FieldsFunc(rest, func(r rune) bool { return r == '\\' || r == '/' }) {
		segs = append(segs, s)
	}
	return segs
}

func splitHost(p string) []string {
	var segs []string
	vol := filepath.VolumeName(p)
	rest := p[len(vol):]
	if strings.HasPrefix(rest, string(filepath.Separator)) || strings.HasPrefix(rest, "/") {
		segs = append(segs, vol+string(filepath.Separator))
	} else if vol != "" {
		segs = append(segs, vol)
	}
	for _, s := range strings.FieldsFunc(rest, func(r rune) bool { return r == filepath.Separator || r == '/' }) {
		segs = append(segs, s)
	}
	return segs
}
