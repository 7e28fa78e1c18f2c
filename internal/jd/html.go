package jd

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"head":     true,
}

var blocks = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "tr": true, "table": true,
	"header": true, "footer": true,
}

// HTMLText extracts visible text from an HTML document. Block elements start
// new lines; list items are prefixed with "- ".
func HTMLText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)

	var (
		lines []string
		line  strings.Builder
		skip  int
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" && s != "-" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			flush()
			return strings.Join(lines, "\n"), nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tt := z.Token()
			tag := tt.Data
			if skipped[tag] {
				if tt.Type == html.StartTagToken {
					skip++
				}
				continue
			}
			if blocks[tag] {
				flush()
			}
			if tag == "li" {
				line.WriteString("- ")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if blocks[tag] {
				flush()
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			line.WriteString(string(z.Text()))
			line.WriteString(" ")
		}
	}
}
