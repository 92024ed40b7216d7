package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/bryanwahyu/profixion/internal/domain/audits"
)

// PDFRenderer prints the report page with headless Chromium. One browser is
// shared; every render gets its own page.
type PDFRenderer struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPDFRenderer starts the driver and the browser. Call Close on shutdown.
func NewPDFRenderer() (*PDFRenderer, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch chromium browser: %w", err)
	}
	return &PDFRenderer{pw: pw, browser: browser}, nil
}

func (r *PDFRenderer) Render(ctx context.Context, in audits.ReportInput) ([]byte, error) {
	html, err := RenderHTML(in)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	browser := r.browser
	r.mu.Unlock()
	if browser == nil {
		return nil, fmt.Errorf("renderer is closed")
	}

	page, err := browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("could not create new page: %w", err)
	}
	defer page.Close()
	if dl, ok := ctx.Deadline(); ok {
		page.SetDefaultTimeout(float64(time.Until(dl).Milliseconds()))
	}

	if err := page.SetContent(html, playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return nil, fmt.Errorf("could not set page content: %w", err)
	}
	pdf, err := page.PDF(playwright.PagePdfOptions{
		Format:          playwright.String("A4"),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String("12mm"),
			Bottom: playwright.String("12mm"),
			Left:   playwright.String("0"),
			Right:  playwright.String("0"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not generate PDF: %w", err)
	}
	return pdf, nil
}

func (r *PDFRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.pw != nil {
		err := r.pw.Stop()
		r.pw = nil
		return err
	}
	return nil
}

// Unavailable is wired in when Chromium could not start; every render fails
// with the startup error.
type Unavailable struct {
	Err error
}

func (u Unavailable) Render(context.Context, audits.ReportInput) ([]byte, error) {
	return nil, fmt.Errorf("pdf renderer unavailable: %w", u.Err)
}
