package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// ErrUnsupportedFormat is returned when the target format has no renderer
// registered in this deployment. Format support is an optional capability,
// so callers must treat this as a reported condition, not a crash.
var ErrUnsupportedFormat = fmt.Errorf("unsupported document format")

type renderFunc func(models.BidDocument) ([]byte, error)

// Converter renders a bid document into one of a fixed set of output
// formats. Rendering is deterministic for a fixed input.
type Converter struct {
	renderers    map[string]renderFunc
	contentTypes map[string]string
}

// New builds a converter with every built-in renderer enabled.
func New() *Converter {
	c := &Converter{
		renderers:    map[string]renderFunc{},
		contentTypes: map[string]string{},
	}
	c.register(models.FormatHTML, "text/html; charset=utf-8", renderHTML)
	c.register(models.FormatJSON, "application/json", renderJSON)
	c.register(models.FormatDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", renderDOCX)
	c.register(models.FormatPDF, "application/pdf", renderPDF)
	return c
}

func (c *Converter) register(format, contentType string, fn renderFunc) {
	c.renderers[format] = fn
	c.contentTypes[format] = contentType
}

// Disable removes a format's renderer, modeling a deployment where the
// backing capability is absent.
func (c *Converter) Disable(format string) {
	delete(c.renderers, format)
}

// Supports reports whether a renderer for the format is available.
func (c *Converter) Supports(format string) bool {
	_, ok := c.renderers[format]
	return ok
}

// Convert renders the document into the target format.
func (c *Converter) Convert(doc models.BidDocument, format string) (models.ConvertedDocument, error) {
	fn, ok := c.renderers[format]
	if !ok {
		return models.ConvertedDocument{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	content, err := fn(doc)
	if err != nil {
		return models.ConvertedDocument{}, fmt.Errorf("render %s: %w", format, err)
	}
	return models.ConvertedDocument{
		Format:      format,
		ContentType: c.contentTypes[format],
		Content:     content,
	}, nil
}

var htmlTemplate = template.Must(template.New("bid").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Solicitation {{.Solicitation}} &mdash; {{.Vendor.Name}} (UEI {{.Vendor.UEI}})</p>
{{range .Sections}}<h2>{{.Heading}}</h2>
<p>{{.Body}}</p>
{{end}}</body>
</html>
`))

func renderHTML(doc models.BidDocument) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := htmlTemplate.Execute(buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderJSON(doc models.BidDocument) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
