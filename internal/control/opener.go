package control

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/browser"
)

// Opener launches the viewer.
type Opener interface {
	Open(target string) error
}

// BrowserOpener opens URLs and local files with the desktop's default browser.
type BrowserOpener struct{}

// NewBrowserOpener creates an opener that keeps the browser's own output off the console.
func NewBrowserOpener() *BrowserOpener {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &BrowserOpener{}
}

// Open implements Opener.
func (BrowserOpener) Open(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("no viewer configured")
	}
	if isURL(target) {
		return browser.OpenURL(target)
	}
	return browser.OpenFile(target)
}

func isURL(s string) bool {
	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}
