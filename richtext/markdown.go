package richtext

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
)

// ExcerptLimit is the rune length of stored excerpts.
const ExcerptLimit = 200

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		strikethrough.NewStrikethroughPlugin(),
	),
)

// Markdown converts markup to markdown. If conversion fails or produces
// nothing, the plain text of the markup is returned instead.
func Markdown(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	result, err := mdConverter.ConvertString(markup)
	if err != nil || strings.TrimSpace(result) == "" {
		doc, perr := Parse(markup)
		if perr != nil {
			return ""
		}
		return strings.TrimSpace(doc.PlainText())
	}
	return strings.TrimSpace(result)
}

// Excerpt returns a single-line markdown preview of markup, cut to limit runes.
func Excerpt(markup string, limit int) string {
	md := strings.Join(strings.Fields(Markdown(markup)), " ")
	return Truncate(md, limit)
}
