package convert

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// Minimal single-font PDF writer. Portals accept any conforming PDF 1.4
// document; layout fidelity is not a submission requirement, so this keeps
// the renderer dependency-free and byte-deterministic.

const (
	pdfPageWidth  = 612 // US Letter, points
	pdfPageHeight = 792
	pdfMargin     = 54
	pdfLeading    = 14
)

func renderPDF(doc models.BidDocument) ([]byte, error) {
	lines := pdfLines(doc)
	pages := paginate(lines, (pdfPageHeight-2*pdfMargin)/pdfLeading)
	if len(pages) == 0 {
		pages = [][]string{{""}}
	}

	// Object layout: 1 catalog, 2 pages tree, 3 font, then per page one
	// page object and one content stream.
	var objects []string
	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, page := range pages {
		stream := contentStream(page)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				pdfPageWidth, pdfPageHeight, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes(), nil
}

func pdfLines(doc models.BidDocument) []string {
	lines := []string{doc.Title, fmt.Sprintf("Solicitation %s - %s (UEI %s)", doc.Solicitation, doc.Vendor.Name, doc.Vendor.UEI), ""}
	for _, sec := range doc.Sections {
		lines = append(lines, sec.Heading)
		lines = append(lines, wrapText(sec.Body, 90)...)
		lines = append(lines, "")
	}
	return lines
}

func paginate(lines []string, perPage int) [][]string {
	if perPage < 1 {
		perPage = 1
	}
	var pages [][]string
	for len(lines) > 0 {
		n := perPage
		if n > len(lines) {
			n = len(lines)
		}
		pages = append(pages, lines[:n])
		lines = lines[n:]
	}
	return pages
}

func contentStream(lines []string) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "BT /F1 11 Tf %d %d Td %d TL\n", pdfMargin, pdfPageHeight-pdfMargin, pdfLeading)
	for _, line := range lines {
		fmt.Fprintf(sb, "(%s) Tj T*\n", escapePDF(line))
	}
	sb.WriteString("ET")
	return sb.String()
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			out = append(out, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(out, line)
}
