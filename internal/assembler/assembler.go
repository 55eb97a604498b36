package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/convert"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/portal"
)

// FormGenerator produces the filled content of one named government form
// from the bid document's vendor and contract fields.
type FormGenerator func(doc models.BidDocument) ([]byte, error)

// Assembler combines a converted bid document with portal-mandated forms
// and certifications into a single submission package.
type Assembler struct {
	converter *convert.Converter
	forms     map[string]FormGenerator
}

func New(converter *convert.Converter) *Assembler {
	a := &Assembler{
		converter: converter,
		forms:     map[string]FormGenerator{},
	}
	a.RegisterForm("SF-33", generateSF33)
	a.RegisterForm("SF-1449", generateSF1449)
	return a
}

// RegisterForm binds a generator to a form name, replacing any existing one.
func (a *Assembler) RegisterForm(name string, gen FormGenerator) {
	if name == "" || gen == nil {
		return
	}
	a.forms[name] = gen
}

// Assemble builds a fresh package for one delivery attempt. Deterministic
// for a fixed document and requirement profile.
func (a *Assembler) Assemble(submissionID string, doc models.BidDocument, reqs portal.Requirements) (models.Package, error) {
	primary, err := a.converter.Convert(doc, reqs.RequiredFormat)
	if err != nil {
		return models.Package{}, fmt.Errorf("convert primary document: %w", err)
	}

	pkg := models.Package{
		SubmissionID: submissionID,
		Primary:      primary,
		Forms:        map[string][]byte{},
	}
	for _, name := range reqs.RequiredForms {
		gen, ok := a.forms[name]
		if !ok {
			return models.Package{}, fmt.Errorf("no generator registered for form %q", name)
		}
		content, err := gen(doc)
		if err != nil {
			return models.Package{}, fmt.Errorf("generate form %q: %w", name, err)
		}
		pkg.Forms[name] = content
	}
	for _, name := range reqs.RequiredCertifications {
		pkg.Certifications = append(pkg.Certifications, models.Certification{
			Name:      name,
			Status:    "included",
			Reference: certReference(name, doc.Vendor),
		})
	}
	return pkg, nil
}

// Validate checks a package against the portal's requirement set and
// returns every violation, not just the first. An empty result means the
// package is ready to submit.
func (a *Assembler) Validate(pkg models.Package, reqs portal.Requirements) []string {
	var violations []string
	if reqs.MaxPackageBytes > 0 && pkg.TotalSize() > reqs.MaxPackageBytes {
		violations = append(violations, fmt.Sprintf("package size %d exceeds portal limit %d", pkg.TotalSize(), reqs.MaxPackageBytes))
	}
	for _, name := range reqs.RequiredForms {
		if _, ok := pkg.Forms[name]; !ok {
			violations = append(violations, fmt.Sprintf("missing required form %q", name))
		}
	}
	have := map[string]bool{}
	for _, cert := range pkg.Certifications {
		have[cert.Name] = true
	}
	for _, name := range reqs.RequiredCertifications {
		if !have[name] {
			violations = append(violations, fmt.Sprintf("missing required certification %q", name))
		}
	}
	return violations
}

func certReference(name string, vendor models.Vendor) string {
	slug := strings.ToUpper(strings.ReplaceAll(name, " ", "-"))
	if vendor.UEI != "" {
		return fmt.Sprintf("%s/%s", vendor.UEI, slug)
	}
	return slug
}

// Standard-form generators render key/value text blocks; portals ingest
// these as attachments alongside the primary document.

func generateSF33(doc models.BidDocument) ([]byte, error) {
	if doc.Vendor.Name == "" {
		return nil, fmt.Errorf("vendor name is required on SF-33")
	}
	return renderForm("SF-33 SOLICITATION, OFFER AND AWARD", map[string]string{
		"Solicitation Number": doc.Solicitation,
		"Contract Number":     doc.ContractNumber,
		"Offeror":             doc.Vendor.Name,
		"UEI":                 doc.Vendor.UEI,
		"CAGE Code":           doc.Vendor.CageCode,
		"Address":             doc.Vendor.Address,
		"Point of Contact":    doc.Vendor.POCName,
	}), nil
}

func generateSF1449(doc models.BidDocument) ([]byte, error) {
	if doc.Vendor.Name == "" {
		return nil, fmt.Errorf("vendor name is required on SF-1449")
	}
	return renderForm("SF-1449 SOLICITATION/CONTRACT/ORDER FOR COMMERCIAL PRODUCTS", map[string]string{
		"Solicitation Number": doc.Solicitation,
		"Offeror":             doc.Vendor.Name,
		"UEI":                 doc.Vendor.UEI,
		"CAGE Code":           doc.Vendor.CageCode,
		"POC Email":           doc.Vendor.POCEmail,
		"POC Phone":           doc.Vendor.POCPhone,
		"Total Price":         fmt.Sprintf("%.2f", doc.TotalPrice),
	}), nil
}

func renderForm(title string, fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb := &strings.Builder{}
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n")
	for _, k := range keys {
		fmt.Fprintf(sb, "%-22s %s\n", k+":", fields[k])
	}
	return []byte(sb.String())
}
