package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// maxPageTextChars bounds how much extracted page text goes back to the
// model.
const maxPageTextChars = 8000

const defaultBrowseTimeout = 30 * time.Second

// Browser drives a shared headless Chrome instance behind the browse tool.
// The browser process launches lazily on the first call and is reused until
// Close.
type Browser struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewBrowser creates a Browser. No Chrome process starts until the tool is
// first invoked.
func NewBrowser() *Browser {
	return &Browser{}
}

// Definition returns the browse tool backed by this browser.
func (b *Browser) Definition() Definition {
	return Definition{
		Name:        "browse",
		Description: "Fetch a web page in a headless browser and return its title, URL and visible text. Useful for reading documentation or looking up current information.",
		Parameters: []Parameter{
			{
				Name:        "url",
				Type:        "string",
				Description: "The http or https URL to open",
				Required:    true,
			},
			{
				Name:        "timeout_seconds",
				Type:        "integer",
				Description: "Navigation timeout in seconds",
				Default:     30,
			},
		},
		Handler: b.browse,
	}
}

func (b *Browser) browse(ctx context.Context, args map[string]interface{}) (string, error) {
	rawURL, _ := args["url"].(string)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("url must start with http:// or https://")
	}

	timeout := defaultBrowseTimeout
	switch v := args["timeout_seconds"].(type) {
	case float64:
		if v > 0 {
			timeout = time.Duration(v) * time.Second
		}
	case int:
		if v > 0 {
			timeout = time.Duration(v) * time.Second
		}
	}

	browser, err := b.connect()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(rawURL); err != nil {
		return "", fmt.Errorf("navigate to %s: %w", rawURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for page load: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("read page info: %w", err)
	}
	text, err := page.Eval(`() => document.body.innerText`)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}

	body := truncatePageText(text.Value.String(), maxPageTextChars)
	return fmt.Sprintf("Title: %s\nURL: %s\n\n%s", info.Title, info.URL, body), nil
}

// connect launches and connects Chrome once, then reuses the instance.
func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(true)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	b.launcher = l
	b.browser = browser
	return browser, nil
}

// Close shuts down the headless browser if one was launched.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Kill()
	b.browser = nil
	b.launcher = nil
	return err
}

func truncatePageText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[truncated]"
}
