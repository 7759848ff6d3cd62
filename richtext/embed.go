// CLAUDE:SUMMARY Builders for the markup the editor inserts: inline image embed, line break, link-preview card, plain hyperlink.
package richtext

import (
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DescriptionLimit is the number of runes of a link description shown on a card.
const DescriptionLimit = 100

// Class names carried by inserted embeds. Downstream renderers key on them.
const (
	ClassImage        = "editor-image"
	ClassLinkPreview  = "link-preview"
	ClassPreviewInfo  = "link-preview-info"
	ClassPreviewTitle = "link-preview-title"
	ClassPreviewDesc  = "link-preview-desc"
)

const (
	imageStyle     = "max-width: 100%; width: 100%; height: auto; display: block; border-radius: 8px; margin: 16px 0;"
	cardStyle      = "display: block; border: 1px solid rgba(128,128,128,0.3); border-radius: 12px; overflow: hidden; margin: 16px 0; text-decoration: none; color: inherit;"
	cardImageStyle = "width: 100%; height: auto; aspect-ratio: 16/9; object-fit: cover;"
	cardInfoStyle  = "padding: 12px;"
	cardTitleStyle = "font-weight: 600; margin-bottom: 4px; color: inherit;"
	cardDescStyle  = "font-size: 13px; opacity: 0.7; color: inherit;"
	linkStyle      = "color: #3b82f6; text-decoration: underline;"
	linkTarget     = "_blank"
	linkRel        = "noopener noreferrer"
)

// Card is the metadata shown on a link-preview embed.
type Card struct {
	Title       string
	Description string
	Image       string
}

// ImageEmbed returns an inline image node for url.
func ImageEmbed(url string) *html.Node {
	return element(atom.Img, "src", url, "style", imageStyle, "class", ClassImage)
}

// LineBreak returns a <br> node.
func LineBreak() *html.Node {
	return element(atom.Br)
}

// LinkCard returns a link-preview card pointing at href. The description is
// truncated to DescriptionLimit runes and omitted when empty.
func LinkCard(href string, c Card) *html.Node {
	a := element(atom.A, "href", href, "target", linkTarget, "rel", linkRel, "class", ClassLinkPreview, "style", cardStyle)
	a.AppendChild(element(atom.Img, "src", c.Image, "alt", c.Title, "style", cardImageStyle))

	info := element(atom.Div, "class", ClassPreviewInfo, "style", cardInfoStyle)
	title := element(atom.Div, "class", ClassPreviewTitle, "style", cardTitleStyle)
	title.AppendChild(text(c.Title))
	info.AppendChild(title)
	if c.Description != "" {
		desc := element(atom.Div, "class", ClassPreviewDesc, "style", cardDescStyle)
		desc.AppendChild(text(Truncate(c.Description, DescriptionLimit)))
		info.AppendChild(desc)
	}
	a.AppendChild(info)
	return a
}

// PlainLink returns a styled hyperlink. An empty label shows href itself.
func PlainLink(href, label string) *html.Node {
	if label == "" {
		label = href
	}
	a := element(atom.A, "href", href, "target", linkTarget, "rel", linkRel, "style", linkStyle)
	a.AppendChild(text(label))
	return a
}

// Truncate cuts s to limit runes and appends "..." when anything was cut.
func Truncate(s string, limit int) string {
	if limit < 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
