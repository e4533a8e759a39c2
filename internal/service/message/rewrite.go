package message

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/language"
)

var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

	supportedLocales = []language.Tag{
		language.English,
		language.Spanish,
		language.Portuguese,
		language.French,
	}
	localeMatcher = language.NewMatcher(supportedLocales)
)

// Locale picks the supported language closest to a company's preference, English by default.
func Locale(preference string) language.Tag {
	_, idx := language.MatchStrings(localeMatcher, preference)
	return supportedLocales[idx]
}

// IsHTML reports whether content holds at least one known HTML element.
func IsHTML(content string) bool {
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != 0 {
				return true
			}
		}
	}
}

// PlainText renders HTML content as its text nodes with whitespace collapsed, skipping scripts and styles.
func PlainText(content string) string {
	var (
		sb   strings.Builder
		skip int
	)
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			if a := tagAtom(z); a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			if a := tagAtom(z); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func tagAtom(z *html.Tokenizer) atom.Atom {
	name, _ := z.TagName()
	return atom.Lookup(name)
}

// anchorTargets returns the unescaped href of every <a> element.
func anchorTargets(content string) []string {
	var hrefs []string
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return hrefs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if atom.Lookup(name) != atom.A {
			continue
		}
		for hasAttr {
			var key, val []byte
			key, val, hasAttr = z.TagAttr()
			if string(key) == "href" {
				hrefs = append(hrefs, strings.TrimSpace(string(val)))
			}
		}
	}
}

// bareURLs finds http(s) URLs in text, dropping trailing sentence punctuation.
func bareURLs(text string) []string {
	found := urlPattern.FindAllString(text, -1)
	for i, u := range found {
		found[i] = strings.TrimRight(u, ".,;:!?)")
	}
	return found
}

// destinations lists the distinct URLs to track in content, in order of appearance.
// Anchors are read only from HTML bodies; bare URLs come from the text rendering.
// URLs that already start with skipPrefix are left alone.
func destinations(content, skipPrefix string) []string {
	var candidates []string
	text := content
	if IsHTML(content) {
		candidates = append(candidates, anchorTargets(content)...)
		text = PlainText(content)
	}
	candidates = append(candidates, bareURLs(text)...)

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, u := range candidates {
		if seen[u] || !isWebURL(u) || strings.HasPrefix(u, skipPrefix) {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func isWebURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// replaceURLs swaps each destination, and its HTML escaped form, for its tracking
// URL in a single pass that never rescans replaced text. Longer keys win at the same
// position, so a destination that prefixes another cannot clobber it. URLs already
// under keepPrefix map to themselves and stay intact.
func replaceURLs(content string, tracked map[string]string, keepPrefix string) string {
	type pair struct{ old, new string }
	pairs := make([]pair, 0, 2*len(tracked))
	for d, t := range tracked {
		pairs = append(pairs, pair{d, t})
		if esc := html.EscapeString(d); esc != d {
			pairs = append(pairs, pair{esc, t})
		}
	}
	if len(pairs) == 0 {
		return content
	}
	if keepPrefix != "" {
		for _, u := range urlPattern.FindAllString(content, -1) {
			if strings.HasPrefix(u, keepPrefix) {
				pairs = append(pairs, pair{u, u})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i].old) != len(pairs[j].old) {
			return len(pairs[i].old) > len(pairs[j].old)
		}
		return pairs[i].old < pairs[j].old
	})
	oldnew := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		oldnew = append(oldnew, p.old, p.new)
	}
	return strings.NewReplacer(oldnew...).Replace(content)
}

// withPixel places a zero size image pointing at src before </body>, or at the end.
// Content that already carries the pixel is returned unchanged.
func withPixel(content, src string) string {
	if strings.Contains(content, src) {
		return content
	}
	tag := fmt.Sprintf(`<img src="%s" width="0" height="0" alt="" />`, src)
	if i := strings.LastIndex(strings.ToLower(content), "</body>"); i >= 0 {
		return content[:i] + tag + content[i:]
	}
	return content + tag
}
