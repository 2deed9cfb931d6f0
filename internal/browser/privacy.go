package browser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"bookmarkforge/internal/config"
)

// contentContainerAllowlist holds identifier substrings that must never
// be hidden by the privacy filter even if they contain a filter term —
// these are the actual article/content containers, not chrome.
var contentContainerAllowlist = []string{"article-body", "post-content", "entry-content", "main-content"}

var blockLevelSelectors = []string{"div", "span", "p", "li", "a", "section", "article", "aside"}

// applyPrivacyFilter walks text nodes containing a configured filter
// term and hides their nearest non-content block ancestor. No-op when no
// filter terms are configured.
func applyPrivacyFilter(page *rod.Page) {
	if len(config.PrivacyFilterTerms) == 0 {
		return
	}
	script := buildPrivacyFilterScript(config.PrivacyFilterTerms, contentContainerAllowlist, blockLevelSelectors)
	if _, err := page.Eval(script); err != nil {
		slog.Warn("privacy filter script failed", "error", err)
	}
}

func buildPrivacyFilterScript(terms, allowlist, selectors []string) string {
	termsJS := jsStringArray(terms)
	allowlistJS := jsStringArray(allowlist)
	selectorsJS := jsStringArray(selectors)
	return fmt.Sprintf(`() => {
		const terms = %s;
		const allowlist = %s;
		const blockTags = new Set(%s);
		const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
		const toHide = new Set();
		let node;
		while ((node = walker.nextNode())) {
			const text = (node.textContent || "").toLowerCase();
			if (!terms.some(t => text.includes(t))) continue;
			let el = node.parentElement;
			while (el && el !== document.body) {
				const style = window.getComputedStyle(el);
				const id = (el.id || "") + " " + (el.className || "");
				const isAllowed = allowlist.some(a => id.toLowerCase().includes(a));
				const isBlock = blockTags.has(el.tagName.toLowerCase()) ||
					style.display === "block" || style.display === "flex" || style.display === "grid";
				if (isBlock && !isAllowed) { toHide.add(el); break; }
				el = el.parentElement;
			}
		}
		toHide.forEach(el => { el.style.display = "none"; });
		return toHide.size;
	}`, termsJS, allowlistJS, selectorsJS)
}

func jsStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

// chromeHidingCSS hides fixed/sticky chrome, normalizes overflow-prone
// elements, and suppresses modal overlays — applied regardless of the
// privacy filter term list, since it targets structural chrome rather
// than sensitive content.
const chromeHidingCSS = `
* { -webkit-print-color-adjust: exact !important; print-color-adjust: exact !important; }
header, nav, footer, aside,
[class*="sticky"], [class*="fixed"], [class*="sidebar"], [class*="header"], [class*="footer"], [class*="nav-"],
[style*="position: fixed"], [style*="position:fixed"], [style*="position: sticky"], [style*="position:sticky"] {
	display: none !important;
}
* { overflow-wrap: break-word !important; word-break: break-word !important; }
sup, sub { vertical-align: baseline !important; top: 0 !important; bottom: 0 !important; }
[class*="footnote-tooltip"], [class*="tooltip"] { display: none !important; }
[role="dialog"], [class*="modal"], [class*="overlay"] { display: none !important; }
`

// injectPrivacyCSS emulates screen media and injects the chrome
// hiding stylesheet. Non-fatal on failure.
func injectPrivacyCSS(page *rod.Page) {
	if err := (proto.EmulationSetEmulatedMedia{Media: "screen"}).Call(page); err != nil {
		slog.Warn("failed to emulate screen media", "error", err)
	}
	if _, err := page.Eval(fmt.Sprintf(`() => {
		const style = document.createElement('style');
		style.textContent = %q;
		document.head.appendChild(style);
	}`, chromeHidingCSS)); err != nil {
		slog.Warn("failed to inject privacy CSS", "error", err)
	}
}
