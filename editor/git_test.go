package editor

import "testing"

func TestParseHunkHeader(t *testing.T) {
	cases := []struct {
		header   string
		oldCount int
		newStart int
		newCount int
		ok       bool
	}{
		{"@@ -12,3 +14,2 @@", 3, 14, 2, true},
		{"@@ -5 +7 @@", 1, 7, 1, true},
		{"@@ -0,0 +1,4 @@", 0, 1, 4, true},
		{"@@ -9,2 +8,0 @@", 2, 8, 0, true},
		{"@@ -a,b +c @@", 0, 0, 0, false},
		{"not a hunk", 0, 0, 0, false},
	}

	for _, c := range cases {
		oldCount, newStart, newCount, ok := parseHunkHeader(c.header)
		if ok != c.ok {
			t.Fatalf("%q: ok=%v, want %v", c.header, ok, c.ok)
		}
		if !ok {
			continue
		}
		if oldCount != c.oldCount || newStart != c.newStart || newCount != c.newCount {
			t.Fatalf("%q: got (%d,%d,%d), want (%d,%d,%d)",
				c.header, oldCount, newStart, newCount, c.oldCount, c.newStart, c.newCount)
		}
	}
}

func TestGitGutterStatusAtUnavailable(t *testing.T) {
	g := NewGitGutter()
	if g.StatusAt(0) != GitUnchanged {
		t.Fatalf("expected GitUnchanged before any update")
	}
}
