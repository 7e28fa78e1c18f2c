package export

import (
	"fmt"
	"html"
	"strings"
)

const htmlStyle = `body{font-family:Arial,sans-serif;line-height:1.6;max-width:800px;margin:0 auto;padding:20px}
h1{color:#2c3e50;border-bottom:2px solid #3498db;padding-bottom:10px}
h2{color:#34495e;margin-top:30px}
ul{padding-left:20px}`

func renderHTML(title string, blocks []block) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>\n%s\n</style>\n</head>\n<body>\n",
		html.EscapeString(title), htmlStyle)

	inList := false
	for _, blk := range blocks {
		if blk.kind != blockBullet && inList {
			b.WriteString("</ul>\n")
			inList = false
		}

		text := inlineHTML(blk.text)
		switch blk.kind {
		case blockHeading:
			fmt.Fprintf(&b, "<h%d>%s</h%d>\n", blk.level, text, blk.level)
		case blockBullet:
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			fmt.Fprintf(&b, "<li>%s</li>\n", text)
		default:
			fmt.Fprintf(&b, "<p>%s</p>\n", text)
		}
	}
	if inList {
		b.WriteString("</ul>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// inlineHTML escapes text and turns **bold** into <strong>.
func inlineHTML(s string) string {
	return emphasis.ReplaceAllString(html.EscapeString(s), "<strong>$1$2</strong>")
}
