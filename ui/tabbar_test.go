package ui

import (
	"fmt"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func newTestScreen(t *testing.T) tcell.Screen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init failed: %v", err)
	}
	t.Cleanup(screen.Fini)
	return screen
}

func TestTabBarScrollsActiveTabIntoView(t *testing.T) {
	tb := NewTabBar()
	for i := 0; i < 14; i++ {
		tb.AddTab(fmt.Sprintf("file-%d.txt", i), false)
	}
	tb.Active = len(tb.Tabs) - 1

	tb.Render(newTestScreen(t), 0, 0, 32, 1)

	if tb.scrollOff <= 0 {
		t.Fatalf("expected scroll for off-screen active tab, got scrollOff=%d", tb.scrollOff)
	}
	if tb.Active < tb.scrollOff {
		t.Fatalf("active tab scrolled out of view: active=%d scrollOff=%d", tb.Active, tb.scrollOff)
	}
}

func TestTabBarWheelScroll(t *testing.T) {
	tb := NewTabBar()
	for i := 0; i < 10; i++ {
		tb.AddTab(fmt.Sprintf("tab-%d.txt", i), false)
	}
	// AddTab activates the newest tab and Render scrolls it into view;
	// anchor on the first tab so the wheel starts from scrollOff 0.
	tb.Active = 0

	tb.Render(newTestScreen(t), 0, 0, 28, 1)
	if tb.scrollOff != 0 {
		t.Fatalf("expected initial scrollOff=0, got %d", tb.scrollOff)
	}

	tb.HandleMouse(tcell.NewEventMouse(5, 0, tcell.WheelDown, tcell.ModNone))
	if tb.scrollOff == 0 {
		t.Fatalf("wheel down should scroll hidden tabs into view")
	}

	tb.HandleMouse(tcell.NewEventMouse(5, 0, tcell.WheelUp, tcell.ModNone))
	if tb.scrollOff != 0 {
		t.Fatalf("wheel up should restore scrollOff=0, got %d", tb.scrollOff)
	}
}

func TestTabTitleMarkers(t *testing.T) {
	tb := NewTabBar()
	tb.AddTab("main.go", false)

	if got := tb.tabTitle(tb.Tabs[0]); got != "main.go" {
		t.Fatalf("clean tab title = %q", got)
	}

	tb.SetModified(0, true)
	if got := tb.tabTitle(tb.Tabs[0]); got != "*main.go" {
		t.Fatalf("modified tab title = %q, want *main.go", got)
	}

	// External modification outranks the plain dirty marker.
	tb.SetExternallyModified(0, true)
	if got := tb.tabTitle(tb.Tabs[0]); got != "!main.go" {
		t.Fatalf("externally modified tab title = %q, want !main.go", got)
	}
}

func TestTabBarRemoveClampsActive(t *testing.T) {
	tb := NewTabBar()
	tb.AddTab("a.go", false)
	tb.AddTab("b.go", false)
	tb.AddTab("c.go", false)
	tb.Active = 2

	tb.RemoveTab(2)
	if tb.Active != 1 {
		t.Fatalf("active after removing last tab = %d, want 1", tb.Active)
	}

	tb.RemoveTab(0)
	if len(tb.Tabs) != 1 || tb.Tabs[0].Path != "b.go" {
		t.Fatalf("unexpected tabs after removal: %+v", tb.Tabs)
	}
	if tb.Active != 0 {
		t.Fatalf("active after removing earlier tab = %d, want 0", tb.Active)
	}
}
