package web

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/yuin/goldmark"
)

var mimeTypes = map[string]string{
	".html": "text/html",
	".js":   "application/javascript",
	".json": "application/json",
	".css":  "text/css",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

// contentType returns the MIME type for a file extension, text/plain if unknown.
func contentType(ext string) string {
	if ct, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "text/plain"
}

// MarkdownPage is the template data for a rendered markdown file.
type MarkdownPage struct {
	Title string
	Body  template.HTML
}

type staticFiles struct {
	root     fs.FS
	markdown *template.Template
}

func newStaticFiles(root fs.FS, templates fs.FS) *staticFiles {
	return &staticFiles{
		root:     root,
		markdown: template.Must(template.ParseFS(templates, "markdown.html")),
	}
}

// ServeHTTP serves a file from the static root. "/" maps to /index.html and
// markdown files are rendered to HTML. Anything that does not resolve to a
// regular file under the root is a 404.
func (s *staticFiles) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	if name == "" || name == "/" {
		name = "/index.html"
	}
	rel := strings.TrimPrefix(path.Clean("/"+name), "/")
	if !fs.ValidPath(rel) {
		notFound(w)
		return
	}

	data, err := fs.ReadFile(s.root, rel)
	if err != nil {
		notFound(w)
		return
	}

	ext := path.Ext(rel)
	if strings.EqualFold(ext, ".md") {
		s.serveMarkdown(w, rel, data)
		return
	}

	w.Header().Set("Content-Type", contentType(ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *staticFiles) serveMarkdown(w http.ResponseWriter, name string, md []byte) {
	var buf bytes.Buffer
	if err := s.markdown.Execute(&buf, MarkdownPage{
		Title: path.Base(name),
		Body:  renderMarkdown(md),
	}); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in the
// source is not passed through.
func renderMarkdown(md []byte) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert(md, &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(string(md)) + "</pre>")
	}
	return template.HTML(buf.String())
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not Found"))
}
