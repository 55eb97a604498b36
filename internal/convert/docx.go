package convert

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// Minimal OOXML wordprocessing document: one part per required member of
// the package, paragraphs only. Zip entries carry a zero timestamp so the
// output is byte-stable for a fixed input.

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

func renderDOCX(doc models.BidDocument) ([]byte, error) {
	body := &strings.Builder{}
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	writeParagraph(body, doc.Title, true)
	writeParagraph(body, fmt.Sprintf("Solicitation %s - %s (UEI %s)", doc.Solicitation, doc.Vendor.Name, doc.Vendor.UEI), false)
	for _, sec := range doc.Sections {
		writeParagraph(body, sec.Heading, true)
		writeParagraph(body, sec.Body, false)
	}
	body.WriteString(`</w:body></w:document>`)

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	parts := []struct {
		name, content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", body.String()},
	}
	for _, part := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: part.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeParagraph(sb *strings.Builder, text string, bold bool) {
	sb.WriteString(`<w:p><w:r>`)
	if bold {
		sb.WriteString(`<w:rPr><w:b/></w:rPr>`)
	}
	sb.WriteString(`<w:t xml:space="preserve">`)
	sb.WriteString(escapeXML(text))
	sb.WriteString(`</w:t></w:r></w:p>`)
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}
