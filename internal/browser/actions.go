package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Locator is a ["type", "value"] pair as produced by form analysis, e.g.
// ["id", "first_name"] or ["xpath", "//input[@name='email']"].
type Locator [2]string

// Kind returns the locator type, lowercased.
func (l Locator) Kind() string { return strings.ToLower(l[0]) }

// Value returns the locator expression.
func (l Locator) Value() string { return l[1] }

// Selector converts the locator into a chromedp selector plus query option.
// Supported kinds: id, name, css, class, xpath. Unknown kinds fall back to a
// CSS query with the raw value.
func (l Locator) Selector() (string, chromedp.QueryOption) {
	switch l.Kind() {
	case "id":
		return "#" + l.Value(), chromedp.ByQuery
	case "name":
		return fmt.Sprintf(`[name=%q]`, l.Value()), chromedp.ByQuery
	case "class", "class_name":
		return "." + l.Value(), chromedp.ByQuery
	case "xpath":
		return l.Value(), chromedp.BySearch
	case "css", "css_selector":
		return l.Value(), chromedp.ByQuery
	default:
		return l.Value(), chromedp.ByQuery
	}
}

// Navigate loads a URL and waits for the document body.
func Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// CurrentURL returns the tab's current location.
func CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// PageHTML returns the full serialized document.
func PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// ElementHTML returns the outer HTML of the first element matching loc.
func ElementHTML(ctx context.Context, loc Locator) (string, error) {
	sel, opt := loc.Selector()
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML(sel, &html, opt)); err != nil {
		return "", err
	}
	return html, nil
}

// Exists reports whether at least one element matches loc within the timeout.
func Exists(ctx context.Context, loc Locator, timeout time.Duration) bool {
	sel, opt := loc.Selector()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, opt))
	return err == nil
}

// Click clicks the first element matching loc. If the normal click fails
// (overlay, off-screen element), it retries with a JavaScript click.
func Click(ctx context.Context, loc Locator) error {
	sel, opt := loc.Selector()
	err := chromedp.Run(ctx, chromedp.Click(sel, opt))
	if err == nil {
		return nil
	}
	// JS fallback for elements Chrome refuses to click directly
	jsErr := chromedp.Run(ctx, jsClick(loc))
	if jsErr != nil {
		return fmt.Errorf("click failed for %v: %w", loc, err)
	}
	return nil
}

func jsClick(loc Locator) chromedp.Action {
	var expr string
	switch loc.Kind() {
	case "xpath":
		expr = fmt.Sprintf(
			`document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue.click()`,
			loc.Value())
	default:
		sel, _ := loc.Selector()
		expr = fmt.Sprintf(`document.querySelector(%q).click()`, sel)
	}
	return chromedp.Evaluate(expr, nil)
}

// Type clears the matching input and types value into it.
func Type(ctx context.Context, loc Locator, value string) error {
	sel, opt := loc.Selector()
	return chromedp.Run(ctx,
		chromedp.WaitVisible(sel, opt),
		chromedp.Clear(sel, opt),
		chromedp.SendKeys(sel, value, opt),
	)
}

// SelectOption sets a <select> element to the option with the given visible
// text, falling back to matching by value attribute.
func SelectOption(ctx context.Context, loc Locator, option string) error {
	sel, opt := loc.Selector()
	if err := chromedp.Run(ctx, chromedp.SetAttributeValue(sel, "data-af-select", "1", opt)); err != nil {
		return fmt.Errorf("select element not found for %v: %w", loc, err)
	}
	expr := fmt.Sprintf(`(function() {
		var el = document.querySelector('[data-af-select="1"]');
		el.removeAttribute('data-af-select');
		var want = %q;
		for (var i = 0; i < el.options.length; i++) {
			var o = el.options[i];
			if (o.text.trim() === want || o.value === want) {
				el.selectedIndex = i;
				el.dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
		return false;
	})()`, option)
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not found in select %v", option, loc)
	}
	return nil
}

// SelectOptionContaining picks the first option whose visible text contains
// fragment, case-insensitively. Decline-option labels vary between boards,
// so exact matching is too strict for them.
func SelectOptionContaining(ctx context.Context, loc Locator, fragment string) error {
	sel, opt := loc.Selector()
	if err := chromedp.Run(ctx, chromedp.SetAttributeValue(sel, "data-af-select", "1", opt)); err != nil {
		return fmt.Errorf("select element not found for %v: %w", loc, err)
	}
	expr := fmt.Sprintf(`(function() {
		var el = document.querySelector('[data-af-select="1"]');
		el.removeAttribute('data-af-select');
		var want = %q.toLowerCase();
		for (var i = 0; i < el.options.length; i++) {
			if (el.options[i].text.toLowerCase().indexOf(want) !== -1) {
				el.selectedIndex = i;
				el.dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
		return false;
	})()`, fragment)
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no option containing %q in select %v", fragment, loc)
	}
	return nil
}

// Upload attaches a local file to the file input matching loc.
func Upload(ctx context.Context, loc Locator, path string) error {
	sel, opt := loc.Selector()
	return chromedp.Run(ctx, chromedp.SetUploadFiles(sel, []string{path}, opt))
}

// ScrollToBottom scrolls the page down one viewport.
func ScrollToBottom(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil))
}

// BodyText returns the page's visible text content, used for confirmation
// and failure keyword scans.
func BodyText(ctx context.Context) (string, error) {
	var text string
	if err := chromedp.Run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// PrintPDF renders the current page to a PDF document, used to snapshot
// confirmation pages alongside the application artifacts.
func PrintPDF(ctx context.Context) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
		if err != nil {
			return err
		}
		pdf = buf
		return nil
	}))
	return pdf, err
}
