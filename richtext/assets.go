package richtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AssetKind classifies an embedded asset reference.
type AssetKind string

const (
	AssetImage       AssetKind = "image"
	AssetLinkPreview AssetKind = "link-preview"
	AssetLink        AssetKind = "link"
)

// AssetReference is one embed found in the document.
type AssetReference struct {
	URL  string    `json:"url"`
	Kind AssetKind `json:"kind"`
}

// Assets lists the embeds of the document in order. A link-preview card is
// reported once by its href; its thumbnail is not listed separately.
func (d *Document) Assets() []AssetReference {
	var out []AssetReference
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Img:
				if src := attr(n, "src"); src != "" {
					out = append(out, AssetReference{URL: src, Kind: AssetImage})
				}
			case atom.A:
				href := attr(n, "href")
				if hasClass(n, ClassLinkPreview) {
					out = append(out, AssetReference{URL: href, Kind: AssetLinkPreview})
					return
				}
				if href != "" {
					out = append(out, AssetReference{URL: href, Kind: AssetLink})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// ImageURLs returns the src of every image in the document, in order,
// card thumbnails included and duplicates preserved.
func (d *Document) ImageURLs() []string {
	return imageURLs(d.root)
}

// ExtractAssetURLs parses markup and returns every image src in order.
// Unparseable markup yields no URLs.
func ExtractAssetURLs(markup string) []string {
	doc, err := Parse(markup)
	if err != nil {
		return nil
	}
	return doc.ImageURLs()
}

func imageURLs(root *html.Node) []string {
	urls := []string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			if src := attr(n, "src"); src != "" {
				urls = append(urls, src)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return urls
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
