// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// IndexHtmlTabName is the tab used as the preview document when present.
const IndexHtmlTabName = "index.html"

const defaultPreviewShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Solid REPL</title>
</head>
<body>
<div id="app"></div>
</body>
</html>
`

// PreviewProcessor edits the parsed preview document.
type PreviewProcessor func(doc *html.Node, importMap *ImportMap, opts PreviewOptions) error

// PreviewOptions configures RenderPreview.
type PreviewOptions struct {
	Tabs            []Tab              // project tabs; index.html is used as the document when present
	ModuleBase      string             // URL prefix the compiled modules are served under
	LiveReload      string             // websocket URL announcing updates, empty to disable
	RemoveTagXPaths []string           // nodes removed from the document
	Processors      []PreviewProcessor // run after the built-in processor
}

// RenderPreview renders the document hosting the live preview: the import
// map and the entry module are injected into the project's index.html, or a
// minimal shell when the project has none.
func RenderPreview(opts PreviewOptions, importMap *ImportMap) ([]byte, error) {
	var source io.Reader = strings.NewReader(defaultPreviewShell)
	if idx := FindTab(opts.Tabs, IndexHtmlTabName); idx >= 0 {
		source = strings.NewReader(opts.Tabs[idx].Source)
	}

	utf8Reader, err := detectAndConvertToUTF8(source)
	if err != nil {
		return nil, fmt.Errorf("failed to convert preview document to UTF-8: %w", err)
	}
	doc, err := htmlquery.Parse(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse preview document: %w", err)
	}

	processors := append([]PreviewProcessor{injectPreviewScripts}, opts.Processors...)
	for _, processor := range processors {
		if err := processor(doc, importMap, opts); err != nil {
			return nil, err
		}
	}

	for _, xpath := range opts.RemoveTagXPaths {
		nodes, err := htmlquery.QueryAll(doc, xpath)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", xpath, err)
		}
		for _, node := range nodes {
			if node.Parent != nil {
				node.Parent.RemoveChild(node)
			}
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// injectPreviewScripts prepends the import map to <head> and appends the
// entry module, so the map is in place before any module loads.
func injectPreviewScripts(doc *html.Node, importMap *ImportMap, opts PreviewOptions) error {
	head := htmlquery.FindOne(doc, "//head")
	if head == nil {
		return fmt.Errorf("preview document has no <head>")
	}

	imports, err := json.Marshal(struct {
		Imports *ImportMap `json:"imports"`
	}{Imports: importMap.Clone()})
	if err != nil {
		return err
	}
	// The document is re-encoded as UTF-8.
	for _, meta := range htmlquery.Find(doc, "//meta[@charset]") {
		for i := range meta.Attr {
			if meta.Attr[i].Key == "charset" {
				meta.Attr[i].Val = "utf-8"
			}
		}
	}

	importMapNode := scriptNode([]html.Attribute{{Key: "type", Val: "importmap"}}, string(imports))
	head.InsertBefore(importMapNode, head.FirstChild)

	base := strings.TrimSuffix(opts.ModuleBase, "/")
	entry := base + "/" + strings.TrimPrefix(EntrySpecifier, LocalPrefix)
	appendChild(head, scriptNode([]html.Attribute{
		{Key: "type", Val: "module"},
		{Key: "src", Val: entry},
	}, ""))

	if opts.LiveReload != "" {
		url, err := json.Marshal(opts.LiveReload)
		if err != nil {
			return err
		}
		appendChild(head, scriptNode(nil, fmt.Sprintf(
			"new WebSocket(%s).onmessage = (e) => { if (JSON.parse(e.data).event === 'reload') location.reload(); };", url)))
	}
	return nil
}

func scriptNode(attrs []html.Attribute, body string) *html.Node {
	node := &html.Node{Type: html.ElementNode, Data: "script", Attr: attrs}
	if body != "" {
		node.AppendChild(&html.Node{Type: html.TextNode, Data: body})
	}
	return node
}

func appendChild(parent, child *html.Node) {
	parent.AppendChild(child)
	parent.AppendChild(&html.Node{Type: html.TextNode, Data: "\n"})
}

func detectAndConvertToUTF8(r io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	encoding, _, _ := charset.DetermineEncoding(b, "")

	utf8Reader := transform.NewReader(bytes.NewReader(b), encoding.NewDecoder())
	return utf8Reader, nil
}
