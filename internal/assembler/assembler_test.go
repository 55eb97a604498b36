package assembler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/convert"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/portal"
)

func testDoc() models.BidDocument {
	return models.BidDocument{
		Title:        "Proposal",
		Solicitation: "W912DY25R0010",
		Vendor: models.Vendor{
			Name:     "Acme Federal LLC",
			UEI:      "ABC123DEF456",
			CageCode: "1A2B3",
		},
		Sections:   []models.BidSection{{Heading: "Approach", Body: "Details."}},
		TotalPrice: 9950.50,
	}
}

func testReqs() portal.Requirements {
	return portal.Requirements{
		RequiredFormat:         models.FormatJSON,
		RequiredForms:          []string{"SF-33", "SF-1449"},
		RequiredCertifications: []string{"SAM Registration"},
		MaxPackageBytes:        1 << 20,
	}
}

func TestAssembleBuildsCompletePackage(t *testing.T) {
	a := New(convert.New())

	pkg, err := a.Assemble("job-1", testDoc(), testReqs())
	require.NoError(t, err)
	require.Equal(t, "job-1", pkg.SubmissionID)
	require.Equal(t, models.FormatJSON, pkg.Primary.Format)
	require.Contains(t, pkg.Forms, "SF-33")
	require.Contains(t, pkg.Forms, "SF-1449")
	require.Len(t, pkg.Certifications, 1)
	require.Equal(t, "included", pkg.Certifications[0].Status)
	require.Equal(t, "ABC123DEF456/SAM-REGISTRATION", pkg.Certifications[0].Reference)

	require.Contains(t, string(pkg.Forms["SF-33"]), "Acme Federal LLC")
	require.Contains(t, string(pkg.Forms["SF-1449"]), "9950.50")

	require.Empty(t, a.Validate(pkg, testReqs()))
}

func TestAssembleIsDeterministic(t *testing.T) {
	a := New(convert.New())

	p1, err := a.Assemble("job-1", testDoc(), testReqs())
	require.NoError(t, err)
	p2, err := a.Assemble("job-1", testDoc(), testReqs())
	require.NoError(t, err)

	require.True(t, bytes.Equal(p1.Primary.Content, p2.Primary.Content))
	require.Equal(t, p1.Forms, p2.Forms)
	require.Equal(t, p1.Certifications, p2.Certifications)
}

func TestAssembleMissingFormGenerator(t *testing.T) {
	a := New(convert.New())
	reqs := testReqs()
	reqs.RequiredForms = []string{"SF-999"}

	_, err := a.Assemble("job-1", testDoc(), reqs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "SF-999")
}

func TestAssembleUnsupportedFormat(t *testing.T) {
	c := convert.New()
	c.Disable(models.FormatPDF)
	a := New(c)
	reqs := testReqs()
	reqs.RequiredFormat = models.FormatPDF

	_, err := a.Assemble("job-1", testDoc(), reqs)
	require.ErrorIs(t, err, convert.ErrUnsupportedFormat)
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	a := New(convert.New())
	reqs := testReqs()
	reqs.RequiredForms = []string{"SF-33", "SF-1449", "SF-30"}
	reqs.MaxPackageBytes = 8

	// One form of three present, oversize primary: three violations total,
	// reported in one pass.
	pkg := models.Package{
		SubmissionID: "job-1",
		Primary:      models.ConvertedDocument{Format: models.FormatJSON, Content: []byte(strings.Repeat("x", 64))},
		Forms:        map[string][]byte{"SF-33": []byte("form")},
		Certifications: []models.Certification{
			{Name: "SAM Registration", Status: "included"},
		},
	}

	violations := a.Validate(pkg, reqs)
	require.Len(t, violations, 3)
	require.Contains(t, violations[0], "exceeds portal limit")
	require.Contains(t, violations[1], "SF-1449")
	require.Contains(t, violations[2], "SF-30")
}
