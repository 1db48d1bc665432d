package metadata

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// maxTitleLen is the cap applied to extracted titles, in runes.
const maxTitleLen = 200

var (
	titleTagRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	ogTitleRe    = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:title["'][^>]*content=["']([^"']+)["']`)
	msgTitleRe   = regexp.MustCompile(`msg_title\s*=\s*['"]([^'"]+)['"]`)
	routerDataRe = regexp.MustCompile(`window\._ROUTER_DATA\s*=\s*(\{.*?\})\s*</script>`)
	descFieldRe  = regexp.MustCompile(`"desc"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	jsonTitleRe  = regexp.MustCompile(`"(?:title|name)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	spacesRe     = regexp.MustCompile(`\s+`)
	escapeRe     = regexp.MustCompile(`\\u[0-9a-fA-F]{4}|\\[nrt/"\\]`)
)

// ExtractTitle runs the extraction strategies in order and returns the
// first non-empty, post-processed title. Strategies degrade from parsed
// markup to raw-text regexes so malformed pages still yield something.
func ExtractTitle(body, pageURL string) string {
	for _, strat := range []func(string, string) string{
		fromDocument,
		fromTitleTagRegex,
		fromOGTitleRegex,
		fromInlineScript,
		fromStructuredData,
		fromJSONTitleField,
	} {
		if title := postprocess(strat(body, pageURL)); title != "" {
			return title
		}
	}
	return ""
}

// fromDocument covers the three parsed-markup strategies: <title> element,
// og:title, and twitter:title, in that order.
func fromDocument(body, _ string) string {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	doc := goquery.NewDocumentFromNode(root)

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if title := strings.TrimSpace(content); title != "" {
			return title
		}
	}
	if content, ok := doc.Find(`meta[name="twitter:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

func fromTitleTagRegex(body, _ string) string {
	if m := titleTagRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

func fromOGTitleRegex(body, _ string) string {
	if m := ogTitleRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// fromInlineScript picks up the msg_title assignment used by article pages
// that render the headline from script state.
func fromInlineScript(body, pageURL string) string {
	if !strings.Contains(pageURL, "mp.weixin.qq.com") {
		return ""
	}
	if m := msgTitleRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// fromStructuredData digs the desc field out of the embedded router-state
// JSON used by short-video pages.
func fromStructuredData(body, pageURL string) string {
	if !strings.Contains(pageURL, "douyin.com") {
		return ""
	}
	blob := body
	if m := routerDataRe.FindStringSubmatch(body); m != nil {
		blob = m[1]
	}
	if m := descFieldRe.FindStringSubmatch(blob); m != nil {
		return m[1]
	}
	return ""
}

func fromJSONTitleField(body, _ string) string {
	if m := jsonTitleRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// postprocess normalizes an extracted title: decode escape sequences,
// collapse whitespace runs, trim, and truncate.
func postprocess(title string) string {
	if title == "" {
		return ""
	}
	if strings.Contains(title, `\`) {
		title = decodeEscapes(title)
	}
	title = spacesRe.ReplaceAllString(title, " ")
	title = strings.TrimSpace(title)

	runes := []rune(title)
	if len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen-3]) + "..."
	}
	return title
}

// decodeEscapes resolves \uXXXX sequences and the common JSON escapes
// found in script-embedded text.
func decodeEscapes(s string) string {
	return escapeRe.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case `\n`, `\r`, `\t`:
			return " "
		case `\/`:
			return "/"
		case `\"`:
			return `"`
		case `\\`:
			return `\`
		}
		code, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
}
