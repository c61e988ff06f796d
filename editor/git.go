package editor

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

type GitLineStatus int

const (
	GitUnchanged GitLineStatus = iota
	GitAdded
	GitModified
	GitDeleted // line after a deletion
)

type GitGutter struct {
	lineStatus map[int]GitLineStatus
	available  bool
}

func NewGitGutter() *GitGutter {
	return &GitGutter{
		lineStatus: make(map[int]GitLineStatus),
	}
}

// Update refreshes git diff data for the given file path. Lines are
// classified by parsing the @@ hunk headers of a zero-context diff
// against HEAD.
func (g *GitGutter) Update(filePath string) {
	g.available = false
	g.lineStatus = make(map[int]GitLineStatus)

	if filePath == "" {
		return
	}
	dir := filepath.Dir(filePath)

	cmd := exec.Command("git", "-C", dir, "diff", "-U0", "--no-color", "--", filePath)
	out, err := cmd.Output()
	if err != nil {
		// Not a repo, git missing, or the file is untracked.
		return
	}
	g.available = true

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "@@") {
			continue
		}
		oldCount, newStart, newCount, ok := parseHunkHeader(line)
		if !ok {
			continue
		}
		switch {
		case oldCount == 0:
			// Pure insertion
			for i := 0; i < newCount; i++ {
				g.lineStatus[newStart-1+i] = GitAdded
			}
		case newCount == 0:
			// Pure deletion: mark the line the deletion sits after.
			// newStart is that line in 1-based new-file numbering.
			g.lineStatus[newStart] = GitDeleted
		default:
			for i := 0; i < newCount; i++ {
				g.lineStatus[newStart-1+i] = GitModified
			}
		}
	}
}

// StatusAt returns the git status for a given line number (0-indexed).
func (g *GitGutter) StatusAt(line int) GitLineStatus {
	if !g.available {
		return GitUnchanged
	}
	if s, ok := g.lineStatus[line]; ok {
		return s
	}
	return GitUnchanged
}

// parseHunkHeader pulls the line ranges out of a header like
// "@@ -12,3 +14,2 @@". Counts default to 1 when omitted.
func parseHunkHeader(header string) (oldCount, newStart, newCount int, ok bool) {
	fields := strings.Fields(header)
	if len(fields) < 3 || !strings.HasPrefix(fields[1], "-") || !strings.HasPrefix(fields[2], "+") {
		return 0, 0, 0, false
	}

	parseRange := func(s string) (start, count int, ok bool) {
		count = 1
		if i := strings.IndexByte(s, ','); i >= 0 {
			var err error
			count, err = strconv.Atoi(s[i+1:])
			if err != nil {
				return 0, 0, false
			}
			s = s[:i]
		}
		start, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, false
		}
		return start, count, true
	}

	_, oldCount, okOld := parseRange(fields[1][1:])
	newStart, newCount, okNew := parseRange(fields[2][1:])
	if !okOld || !okNew {
		return 0, 0, 0, false
	}
	return oldCount, newStart, newCount, true
}
