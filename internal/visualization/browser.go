package visualization

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// OpenBrowser opens the graph page at rawURL in the default browser.
// Only http and https URLs are accepted.
func OpenBrowser(rawURL string) error {
	cmd, err := browserCommand(runtime.GOOS, rawURL)
	if err != nil {
		return err
	}
	return cmd.Start()
}

// OpenFile opens a rendered HTML file in the default browser.
func OpenFile(path string) error {
	abs, err := htmlFile(path)
	if err != nil {
		return err
	}
	cmd, err := openCommand(runtime.GOOS, abs)
	if err != nil {
		return err
	}
	return cmd.Start()
}

// htmlFile resolves path and checks that it is an existing .html file.
func htmlFile(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".html") {
		return "", fmt.Errorf("refusing to open %q: not an .html file", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("refusing to open %q: not a regular file", path)
	}
	return abs, nil
}

func browserCommand(goos, rawURL string) (*exec.Cmd, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("refusing to open %q: not an http URL", rawURL)
	}
	return openCommand(goos, rawURL)
}

// openCommand hands target to the platform's opener.
func openCommand(goos, target string) (*exec.Cmd, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", target), nil
	case "darwin":
		return exec.Command("open", target), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
