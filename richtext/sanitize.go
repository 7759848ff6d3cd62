package richtext

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Policy returns the allow-list applied to persisted markup. It covers exactly
// what the toolbar and the embed builders can produce.
func Policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("b", "i", "u", "s", "strike", "em", "strong", "br", "p", "div", "span", "ul", "ol", "li", "font")
		p.AllowAttrs("style", "class").Globally()
		p.AllowURLSchemes("http", "https", "mailto")
		p.RequireParseableURLs(true)
		p.AllowAttrs("href", "target", "rel").OnElements("a")
		p.AllowAttrs("src", "alt").OnElements("img")
		p.AllowAttrs("color", "size", "face").OnElements("font")
		policy = p
	})
	return policy
}

// Sanitize strips everything outside the allow-list from markup.
func Sanitize(markup string) string {
	return Policy().Sanitize(markup)
}
