package models

import "time"

// Output formats the document converter can produce.
const (
	FormatHTML = "html"
	FormatDOCX = "docx"
	FormatPDF  = "pdf"
	FormatJSON = "json"
)

// Vendor identifies the bidding entity; form generators pull from here.
type Vendor struct {
	Name     string `json:"name"`
	UEI      string `json:"uei"`
	CageCode string `json:"cage_code"`
	DUNS     string `json:"duns,omitempty"`
	Address  string `json:"address,omitempty"`
	POCName  string `json:"poc_name,omitempty"`
	POCEmail string `json:"poc_email,omitempty"`
	POCPhone string `json:"poc_phone,omitempty"`
}

// BidSection is one titled block of proposal text.
type BidSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// BidDocument is the finished bid content handed to the orchestrator.
// The orchestrator never generates or edits this text; it only converts,
// packages, and delivers it.
type BidDocument struct {
	Title          string       `json:"title"`
	RFPID          string       `json:"rfp_id"`
	Solicitation   string       `json:"solicitation_number"`
	ContractNumber string       `json:"contract_number,omitempty"`
	Vendor         Vendor       `json:"vendor"`
	Sections       []BidSection `json:"sections"`
	TotalPrice     float64      `json:"total_price,omitempty"`
	PreparedAt     time.Time    `json:"prepared_at,omitempty"`
}

// ConvertedDocument is the primary document after format conversion.
type ConvertedDocument struct {
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Size returns the encoded payload size in bytes.
func (d ConvertedDocument) Size() int64 { return int64(len(d.Content)) }

// Certification marks one portal-required certification as included.
type Certification struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// Package is the complete submission unit built fresh per delivery attempt.
// It must pass validation before it is handed to a portal adapter.
type Package struct {
	SubmissionID   string            `json:"submission_id"`
	Primary        ConvertedDocument `json:"primary_document"`
	Forms          map[string][]byte `json:"forms"`
	Certifications []Certification   `json:"certifications"`
}

// TotalSize is the primary document plus all generated forms.
func (p Package) TotalSize() int64 {
	total := p.Primary.Size()
	for _, f := range p.Forms {
		total += int64(len(f))
	}
	return total
}
