package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders Markdown(s) as a standalone page. Raw HTML in model text is
// not passed through.
func HTML(s Summary) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(s)), &body); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(Title(s.DocumentID)))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
