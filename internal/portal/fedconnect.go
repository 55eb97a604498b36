package portal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// FedConnect speaks the older XML envelope dialect. Same classification
// rules as SAM.gov: 5xx and transport errors retry, other 4xx terminate.
type FedConnect struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewFedConnect(endpoint, apiKey string, timeout time.Duration) *FedConnect {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &FedConnect{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *FedConnect) Name() string { return "fedconnect" }

type fedConnectEnvelope struct {
	XMLName      xml.Name         `xml:"ResponseSubmission"`
	SubmissionID string           `xml:"SubmissionId"`
	Format       string           `xml:"DocumentFormat"`
	Document     string           `xml:"DocumentContent"`
	Forms        []fedConnectForm `xml:"Forms>Form"`
	Certs        []fedConnectCert `xml:"Certifications>Certification"`
}

type fedConnectForm struct {
	Name    string `xml:"name,attr"`
	Content string `xml:",chardata"`
}

type fedConnectCert struct {
	Name      string `xml:"name,attr"`
	Status    string `xml:"status,attr"`
	Reference string `xml:"reference,attr"`
}

type fedConnectReceipt struct {
	XMLName        xml.Name `xml:"Receipt"`
	TrackingNumber string   `xml:"TrackingNumber"`
	Status         string   `xml:"Status"`
	Message        string   `xml:"Message"`
}

func (p *FedConnect) Submit(ctx context.Context, pkg models.Package) (Outcome, error) {
	env := fedConnectEnvelope{
		SubmissionID: pkg.SubmissionID,
		Format:       pkg.Primary.Format,
		Document:     base64.StdEncoding.EncodeToString(pkg.Primary.Content),
	}
	for name, content := range pkg.Forms {
		env.Forms = append(env.Forms, fedConnectForm{Name: name, Content: base64.StdEncoding.EncodeToString(content)})
	}
	for _, cert := range pkg.Certifications {
		env.Certs = append(env.Certs, fedConnectCert{Name: cert.Name, Status: cert.Status, Reference: cert.Reference})
	}
	body, err := xml.Marshal(env)
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("X-Idempotency-Key", pkg.SubmissionID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: fmt.Sprintf("read receipt: %v", err)}, nil
	}

	switch {
	case resp.StatusCode < 300:
		var receipt fedConnectReceipt
		if err := xml.Unmarshal(raw, &receipt); err != nil {
			return Outcome{ErrClass: ErrClassRetryable, ErrMessage: fmt.Sprintf("decode receipt: %v", err)}, nil
		}
		if receipt.TrackingNumber == "" {
			return Outcome{ErrClass: ErrClassRetryable, ErrMessage: "receipt missing tracking number"}, nil
		}
		return Outcome{Success: true, ConfirmationNumber: receipt.TrackingNumber}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: fmt.Sprintf("portal status %d", resp.StatusCode)}, nil
	default:
		return Outcome{ErrClass: ErrClassNonRetryable, ErrMessage: fmt.Sprintf("portal rejected submission, status %d", resp.StatusCode)}, nil
	}
}
