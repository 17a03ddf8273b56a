package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/parkstats/config"
)

// ErrPDFUnavailable is returned when no PDF converter is configured.
var ErrPDFUnavailable = errors.New("report: pdf conversion unavailable")

// PDFConverter turns a rendered HTML document into a fixed-layout PDF.
type PDFConverter interface {
	Convert(ctx context.Context, html []byte) ([]byte, error)
}

// ChromeConverter prints HTML to PDF through a headless Chrome instance.
type ChromeConverter struct {
	// ExecPath overrides the browser binary; empty uses chromedp's lookup.
	ExecPath string
	Timeout  time.Duration
}

// Convert loads html into a blank page and prints it with backgrounds.
func (c ChromeConverter) Convert(ctx context.Context, html []byte) ([]byte, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", true), chromedp.DisableGPU)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = config.DefaultPDFTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("report: chrome print: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Int("bytes", len(pdf)).Dur("elapsed", time.Since(start)).Msg("pdf printed")
	return pdf, nil
}
