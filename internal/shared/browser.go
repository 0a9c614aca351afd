package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// openers maps GOOS to the command that hands a URL to the desktop.
var openers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// OpenBrowser asks the desktop to open an http(s) URL. It does not wait for the browser.
func OpenBrowser(rawURL string) error {
	return openURL(runtime.GOOS, rawURL, func(name string, args ...string) error {
		return exec.Command(name, args...).Start()
	})
}

func openURL(goos, rawURL string, start func(name string, args ...string) error) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: refusing to open %q", ErrInvalidArgument, rawURL)
	}

	opener, ok := openers[goos]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", goos)
	}

	args := append(opener[1:len(opener):len(opener)], u.String())
	if err := start(opener[0], args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
