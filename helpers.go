package nw

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tailscale/hujson"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"google.golang.org/api/googleapi"
)

const (
	fakeUserAgent = `Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:128.0) Gecko/20100101 Firefox/128.0`

	redacted = "|REDACTED|"

	ellipsis = "…"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	// raw html is rendered as it is, and stripped later with other tags
	markdown = goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe()))

	regexWhitespaces = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// StandardizeJSON standardizes given JSON (JWCC) bytes.
func StandardizeJSON(b []byte) ([]byte, error) {
	ast, err := hujson.Parse(b)
	if err != nil {
		return b, err
	}
	ast.Standardize()

	return ast.Pack(), nil
}

// convert error to string
func errorString(err error) (error string) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Sprintf("googleapi error: %s", gerr.Body)
	} else {
		return err.Error()
	}
}

// print verbose message
func v(verbose bool, format string, v ...any) {
	if verbose {
		log.Printf("[verbose] %s", fmt.Sprintf(format, v...))
	}
}

// strip all markup tags from given string
//
// (bluemonday escapes the remaining text, so it is unescaped again)
func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// collapse consecutive whitespaces into a single space
func collapseSpaces(s string) string {
	return strings.TrimSpace(regexWhitespaces.ReplaceAllString(s, " "))
}

// convert generated (possibly markdown-decorated) text into plain text
func markdownToText(s string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err != nil {
		return stripTags(s)
	}
	return collapseSpaces(stripTags(buf.String()))
}

// trim given text to `n` words, appending `more` when trimmed
func trimWords(s string, n int, more string) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + more
}

// check if given url is an absolute http(s) url
func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// redact given string not to expose api keys or etc.
func redactText(text string, baddies []string) string {
	for _, baddy := range baddies {
		if len(baddy) > 0 {
			text = strings.ReplaceAll(text, baddy, redacted)
		}
	}

	return text
}

// Prettify prettifies given thing in JSON format.
func Prettify(v any) string {
	if b, err := json.MarshalIndent(v, "", "  "); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%+v", v)
}
