package portal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
)

// SAMGov submits packages to the SAM.gov opportunity-response API as a
// JSON envelope. The job id rides along as an idempotency header so the
// portal can dedupe a resubmit after a timed-out attempt.
type SAMGov struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewSAMGov(endpoint, apiKey string, timeout time.Duration) *SAMGov {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &SAMGov{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *SAMGov) Name() string { return "samgov" }

type samGovEnvelope struct {
	SubmissionID   string                 `json:"submissionId"`
	DocumentFormat string                 `json:"documentFormat"`
	Document       string                 `json:"document"`
	Forms          map[string]string      `json:"forms"`
	Certifications []models.Certification `json:"certifications"`
}

type samGovResponse struct {
	ConfirmationNumber string `json:"confirmationNumber"`
	Status             string `json:"status"`
	Message            string `json:"message"`
}

func (p *SAMGov) Submit(ctx context.Context, pkg models.Package) (Outcome, error) {
	env := samGovEnvelope{
		SubmissionID:   pkg.SubmissionID,
		DocumentFormat: pkg.Primary.Format,
		Document:       base64.StdEncoding.EncodeToString(pkg.Primary.Content),
		Forms:          map[string]string{},
		Certifications: pkg.Certifications,
	}
	for name, content := range pkg.Forms {
		env.Forms[name] = base64.StdEncoding.EncodeToString(content)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.apiKey)
	req.Header.Set("X-Idempotency-Key", pkg.SubmissionID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Transport failures (DNS, reset, context deadline) are retryable.
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: fmt.Sprintf("read response: %v", err)}, nil
	}

	switch {
	case resp.StatusCode < 300:
		var out samGovResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return Outcome{ErrClass: ErrClassRetryable, ErrMessage: fmt.Sprintf("decode response: %v", err)}, nil
		}
		if out.ConfirmationNumber == "" {
			return Outcome{ErrClass: ErrClassRetryable, ErrMessage: "accepted without confirmation number"}, nil
		}
		return Outcome{Success: true, ConfirmationNumber: out.ConfirmationNumber}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Outcome{ErrClass: ErrClassRetryable, ErrMessage: fmt.Sprintf("portal status %d: %s", resp.StatusCode, respMessage(raw))}, nil
	default:
		// 4xx other than 429: the portal rejected the content itself.
		return Outcome{ErrClass: ErrClassNonRetryable, ErrMessage: fmt.Sprintf("portal rejected submission, status %d: %s", resp.StatusCode, respMessage(raw))}, nil
	}
}

func respMessage(raw []byte) string {
	var out samGovResponse
	if err := json.Unmarshal(raw, &out); err == nil && out.Message != "" {
		return out.Message
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
