package shared

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/pkg/browser"
)

var getRuntime = func() string { return runtime.GOOS }

// openURL is swapped in tests.
var openURL = browser.OpenURL

func init() {
	// stdout carries the JSON result, so the launched handler must not write to it.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// OpenBrowser opens url in the user's default handler.
//
// Tries [browser.OpenURL] first and falls back to the platform opener (open, xdg-open, start).
func OpenBrowser(url string) error {
	if err := openURL(url); err == nil {
		return nil
	}

	var cmd *exec.Cmd
	rt := getRuntime()
	switch rt {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
