//go:build acceptance

package acceptance

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	pstrings "groundtruth/pkg/platform/strings"
)

// BrowserFixture owns the Playwright process and one Chromium instance for a
// test. Contexts carved from it have isolated cookies, which is exactly what
// session tests need.
type BrowserFixture struct {
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// NewBrowserFixture launches Chromium. Set HEADLESS=false to watch it work.
func NewBrowserFixture(t *testing.T) *BrowserFixture {
	t.Helper()

	pw, err := playwright.Run()
	require.NoError(t, err, "failed to start playwright")

	headless := os.Getenv("HEADLESS") != "false"
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	require.NoError(t, err, "failed to launch browser")

	bf := &BrowserFixture{PW: pw, Browser: browser}
	t.Cleanup(bf.Close)
	return bf
}

// NewContext opens a fresh browser context with no cookies or storage.
func (bf *BrowserFixture) NewContext(t *testing.T) playwright.BrowserContext {
	t.Helper()
	ctx, err := bf.Browser.NewContext()
	require.NoError(t, err, "failed to create browser context")
	return ctx
}

func (bf *BrowserFixture) Close() {
	bf.Browser.Close()
	bf.PW.Stop()
}

// CaptureOnFailure saves a full-page screenshot when the test fails, as a
// diagnostic artifact only. Files land in GROUNDTRUTH_ARTIFACTS_DIR, or the
// system temp dir when unset.
func CaptureOnFailure(t *testing.T, page playwright.Page) {
	t.Helper()
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		dir := os.Getenv("GROUNDTRUTH_ARTIFACTS_DIR")
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "groundtruth-acceptance")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Logf("screenshot dir: %v", err)
			return
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.png", pstrings.SafeToken(t.Name())))
		if _, err := page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(path),
			FullPage: playwright.Bool(true),
		}); err != nil {
			t.Logf("screenshot: %v", err)
			return
		}
		t.Logf("screenshot saved: %s", path)
	})
}
