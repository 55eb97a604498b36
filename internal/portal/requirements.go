package portal

import (
	"time"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// Built-in requirement profiles. Real deployments override endpoints and
// keys through config; the requirement sets themselves track what each
// portal actually mandates.

func SAMGovRequirements() Requirements {
	return Requirements{
		RequiredFormat: models.FormatPDF,
		RequiredForms:  []string{"SF-33", "SF-1449"},
		RequiredCertifications: []string{
			"SAM Registration",
			"Representations and Certifications",
		},
		MaxPackageBytes: 100 << 20,
		AverageLatency:  8 * time.Second,
	}
}

func FedConnectRequirements() Requirements {
	return Requirements{
		RequiredFormat: models.FormatDOCX,
		RequiredForms:  []string{"SF-33"},
		RequiredCertifications: []string{
			"SAM Registration",
		},
		MaxPackageBytes: 50 << 20,
		AverageLatency:  15 * time.Second,
	}
}

func MockRequirements() Requirements {
	return Requirements{
		RequiredFormat: models.FormatJSON,
		RequiredForms:  []string{"SF-1449"},
		RequiredCertifications: []string{
			"SAM Registration",
		},
		MaxPackageBytes: 10 << 20,
		AverageLatency:  50 * time.Millisecond,
	}
}
