package generator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const metaDescriptionLimit = 160

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)
)

// normalizePost tidies the text stage output before it is merged.
func normalizePost(c *PostContent, uploaded bool) {
	c.Headline = strings.TrimSpace(c.Headline)
	c.Caption = strings.TrimSpace(c.Caption)
	c.Hashtags = normalizeHashtags(c.Hashtags)
	if uploaded {
		c.ImagePromptDescription = UseUploadedImage
	} else {
		c.ImagePromptDescription = strings.TrimSpace(c.ImagePromptDescription)
	}
}

func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(t), "")
		t = strings.TrimLeft(t, "#")
		if t == "" {
			continue
		}
		t = "#" + t
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// normalizeArticle fills slug, meta description and word count when the model skimped.
func normalizeArticle(a *Article) {
	a.Title = strings.TrimSpace(a.Title)
	slug := Slugify(a.Slug)
	if slug == "" {
		slug = Slugify(a.Title)
	}
	a.Slug = slug
	text := PlainText(a.ContentHTML)
	if strings.TrimSpace(a.MetaDescription) == "" {
		a.MetaDescription = truncateRunes(text, metaDescriptionLimit)
	} else {
		a.MetaDescription = truncateRunes(strings.TrimSpace(a.MetaDescription), metaDescriptionLimit)
	}
	if a.WordCount <= 0 {
		a.WordCount = len(strings.Fields(text))
	}
}

// normalizeConversion forces the requested format and keeps exactly one body.
func normalizeConversion(r *ConversionResult, format ConversionFormat) {
	r.Format = format
	if format == ConversionDeepArticle {
		r.Script = nil
		r.Caption = ""
		return
	}
	r.ArticleContent = ""
}

// Slugify turns a title into a URL path segment, dropping Portuguese diacritics.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = slugSeparators.ReplaceAllString(strings.ToLower(plain), "-")
	return strings.Trim(plain, "-")
}

// PlainText strips tags and collapses whitespace.
func PlainText(html string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(html, " ")), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
