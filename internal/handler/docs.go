package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

const specPath = "/docs/openapi.yaml"

// DocsHandler serves the embedded OpenAPI document and a Swagger UI page for
// it. Both carry the document's info.version so clients can tell which API
// revision a deployment speaks.
type DocsHandler struct {
	spec    []byte
	title   string
	version string
	etag    string
	page    []byte
}

func NewDocsHandler(spec []byte) (*DocsHandler, error) {
	var doc struct {
		Info struct {
			Title   string `yaml:"title"`
			Version string `yaml:"version"`
		} `yaml:"info"`
	}
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("NewDocsHandler: parse spec: %w", err)
	}
	if doc.Info.Title == "" || doc.Info.Version == "" {
		return nil, errors.New("NewDocsHandler: spec info.title and info.version are required")
	}

	sum := sha256.Sum256(spec)
	h := &DocsHandler{
		spec:    spec,
		title:   doc.Info.Title,
		version: doc.Info.Version,
		etag:    fmt.Sprintf(`"%s-%s"`, doc.Info.Version, hex.EncodeToString(sum[:6])),
	}

	var page bytes.Buffer
	if err := docsPage.Execute(&page, map[string]string{
		"Title":   h.title,
		"Version": h.version,
		"SpecURL": specPath,
	}); err != nil {
		return nil, fmt.Errorf("NewDocsHandler: render page: %w", err)
	}
	h.page = page.Bytes()
	return h, nil
}

func (h *DocsHandler) Version() string { return h.version }

func (h *DocsHandler) Spec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", h.etag)
	w.Header().Set("X-API-Version", h.version)
	if r.Header.Get("If-None-Match") == h.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(h.spec); err != nil {
		slog.Warn("failed to write openapi spec", "error", err)
	}
}

func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-API-Version", h.version)
	if _, err := w.Write(h.page); err != nil {
		slog.Warn("failed to write docs page", "error", err)
	}
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}} v{{.Version}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "{{.SpecURL}}",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout"
    });
  </script>
</body>
</html>`))
