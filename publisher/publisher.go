// Package publisher turns generated content into the forms it leaves the
// studio in: rendered HTML previews, clipboard text, WhatsApp messages and
// image files.
package publisher

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// md renders captions and message bodies. Captions are written with single
// line breaks, so they are kept as <br>; raw HTML from the model passes through.
var md = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps(), html.WithUnsafe()),
)

// RenderBody converts Markdown (or Markdown with inline HTML) to HTML.
func RenderBody(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NormalizeArticleHTML strips document wrappers the model sometimes adds
// despite being told not to, drops scripts and styles, and demotes <h1> to
// <h2> because the page title is the only h1.
func NormalizeArticleHTML(src string) string {
	z := xhtml.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skipDepth := 0
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			break
		}
		tok := z.Token()
		switch tok.DataAtom {
		case atom.Html, atom.Head, atom.Body:
			continue
		case atom.Script, atom.Style, atom.Title, atom.Meta, atom.Link:
			switch tt {
			case xhtml.StartTagToken:
				if tok.DataAtom != atom.Meta && tok.DataAtom != atom.Link {
					skipDepth++
				}
			case xhtml.EndTagToken:
				if skipDepth > 0 {
					skipDepth--
				}
			}
			continue
		case atom.H1:
			tok.DataAtom, tok.Data = atom.H2, "h2"
		}
		if skipDepth > 0 || tt == xhtml.DoctypeToken || tt == xhtml.CommentToken {
			continue
		}
		b.WriteString(tok.String())
	}
	return strings.TrimSpace(b.String())
}

var articlePage = template.Must(template.New("article").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="description" content="{{.MetaDescription}}">
</head>
<body>
<article>
<h1>{{.Title}}</h1>
{{.Body}}
</article>
</body>
</html>
`))

// ArticlePage renders a standalone preview page for an article body.
func ArticlePage(title, metaDescription, bodyHTML string) ([]byte, error) {
	var buf bytes.Buffer
	err := articlePage.Execute(&buf, struct {
		Title           string
		MetaDescription string
		Body            template.HTML
	}{title, metaDescription, template.HTML(NormalizeArticleHTML(bodyHTML))})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CopyText is the clipboard form of a post.
func CopyText(headline, caption string, hashtags []string) string {
	return fmt.Sprintf("%s\n\n%s\n\n%s", headline, caption, strings.Join(hashtags, " "))
}

var (
	liRe      = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	olRe      = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulRe      = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	headingRe = regexp.MustCompile(`(?s)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	strongRe  = regexp.MustCompile(`(?s)<(?:strong|b)>(.*?)</(?:strong|b)>`)
	emRe      = regexp.MustCompile(`(?s)<(?:em|i)>(.*?)</(?:em|i)>`)
	breakRe   = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
	anyTagRe  = regexp.MustCompile(`<[^>]+>`)
	mdBoldRe  = regexp.MustCompile(`\*\*(.+?)\*\*`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
)

// FormatForWhatsApp rewrites Markdown or simple HTML into WhatsApp markup:
// *bold*, _italic_, numbered and bulleted lines, no tags.
func FormatForWhatsApp(text string) string {
	text = mdBoldRe.ReplaceAllString(text, "*$1*")
	if !anyTagRe.MatchString(text) {
		return strings.TrimSpace(text)
	}
	text = headingRe.ReplaceAllString(text, "\n*$1*\n")
	text = olRe.ReplaceAllStringFunc(text, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		var b strings.Builder
		for i, item := range items {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, strings.TrimSpace(item[1])))
		}
		return b.String() + "\n"
	})
	text = ulRe.ReplaceAllStringFunc(text, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		var b strings.Builder
		for _, item := range items {
			b.WriteString("\n• " + strings.TrimSpace(item[1]))
		}
		return b.String() + "\n"
	})
	text = strongRe.ReplaceAllString(text, "*$1*")
	text = emRe.ReplaceAllString(text, "_${1}_")
	text = breakRe.ReplaceAllString(text, "\n")
	text = anyTagRe.ReplaceAllString(text, "")
	text = xhtml.UnescapeString(text)
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
