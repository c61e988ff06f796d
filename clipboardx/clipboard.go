// Package clipboardx wraps the system clipboard with terminal-friendly
// fallbacks. Native access (via atotto/clipboard) fails on headless or
// SSH sessions, so writes also go through whatever paste utilities exist
// on PATH and, as a last resort, an OSC 52 escape so the hosting terminal
// can capture the text. A process-local store backs Read when every
// external source comes up empty.
package clipboardx

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
)

type tool struct {
	name string
	args []string
}

var writeTools = []tool{
	{name: "wl-copy"},
	{name: "xclip", args: []string{"-selection", "clipboard"}},
	{name: "xsel", args: []string{"--clipboard", "--input"}},
	{name: "pbcopy"},
	{name: "clip.exe"},
}

var readTools = []tool{
	{name: "wl-paste", args: []string{"--no-newline"}},
	{name: "xclip", args: []string{"-o", "-selection", "clipboard"}},
	{name: "xsel", args: []string{"--clipboard", "--output"}},
	{name: "pbpaste"},
	{name: "powershell.exe", args: []string{"-NoProfile", "-Command", "Get-Clipboard"}},
}

var (
	mu    sync.Mutex
	local string
)

// Write stores text in every clipboard it can reach and reports whether
// at least one destination beyond the process-local store accepted it.
func Write(text string) bool {
	mu.Lock()
	local = text
	mu.Unlock()

	ok := clipboard.WriteAll(text) == nil
	if runWriteTool(text) {
		ok = true
	}
	if !ok && writeOSC52(text) {
		ok = true
	}
	return ok
}

// Read returns the clipboard contents, preferring native access, then
// command-line tools, then whatever Write last stored in this process.
func Read() string {
	if text, err := clipboard.ReadAll(); err == nil && text != "" {
		return text
	}
	for _, t := range readTools {
		if _, err := exec.LookPath(t.name); err != nil {
			continue
		}
		out, err := exec.Command(t.name, t.args...).Output()
		if err == nil && len(out) > 0 {
			return string(out)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	return local
}

func runWriteTool(text string) bool {
	for _, t := range writeTools {
		if _, err := exec.LookPath(t.name); err != nil {
			continue
		}
		cmd := exec.Command(t.name, t.args...)
		cmd.Stdin = strings.NewReader(text)
		if cmd.Run() == nil {
			return true
		}
	}
	return false
}

// writeOSC52 asks the terminal emulator itself to take the selection.
// Only attempted when stdout is still a terminal.
func writeOSC52(text string) bool {
	if text == "" {
		return false
	}
	if fi, err := os.Stdout.Stat(); err != nil || (fi.Mode()&os.ModeCharDevice) == 0 {
		return false
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	_, err := fmt.Fprintf(os.Stdout, "\x1b]52;c;%s\x07", encoded)
	return err == nil
}
