package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/models"
	"github.com/drogafarto-web/docfiscal/pkg/config"
	"go.uber.org/zap"
)

// Client talks to the external document recognition API. It performs no
// retries; each failure is terminal for the document being analyzed and
// retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *zap.Logger
}

func NewClient(cfg *config.RecognitionConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

type analyzeRequest struct {
	Content  string `json:"content"` // base64-encoded document bytes
	MimeType string `json:"mime_type"`
}

type analyzeResponse struct {
	IssuerName     string  `json:"issuer_name"`
	IssuerTaxID    string  `json:"issuer_tax_id"`
	DocumentNumber string  `json:"document_number"`
	GrossAmount    float64 `json:"gross_amount"`
	NetAmount      float64 `json:"net_amount"`
	IssueDate      string  `json:"issue_date"`
	DueDate        string  `json:"due_date"`
	DigitLine      string  `json:"digit_line"`
	Barcode        string  `json:"barcode"`
	PixKey         string  `json:"pix_key"`
	DocumentType   string  `json:"document_type"`
	Hint           string  `json:"classification_hint"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale"`
}

// Analyze sends the document bytes to the recognition service and returns the
// structured extraction. Failures come back as *Error with a classified kind.
func (c *Client) Analyze(ctx context.Context, data []byte, mimeType string) (*models.Extraction, error) {
	payload, err := json.Marshal(analyzeRequest{
		Content:  base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Recognition call failed", zap.Error(err))
		return nil, classify(0, "", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		cerr := classify(resp.StatusCode, string(body), nil)
		c.logger.Warn("Recognition call rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(cerr.Kind)),
		)
		return nil, cerr
	}

	var decoded analyzeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	extraction := toExtraction(&decoded)
	c.logger.Info("Recognition completed",
		zap.String("document_type", string(extraction.DocumentType)),
		zap.Float64("confidence", extraction.Confidence),
		zap.Duration("elapsed", time.Since(started)),
	)
	return extraction, nil
}

func toExtraction(r *analyzeResponse) *models.Extraction {
	ext := &models.Extraction{
		IssuerName:     r.IssuerName,
		IssuerTaxID:    r.IssuerTaxID,
		DocumentNumber: r.DocumentNumber,
		GrossAmount:    r.GrossAmount,
		NetAmount:      r.NetAmount,
		IssueDate:      parseDate(r.IssueDate),
		DueDate:        parseDate(r.DueDate),
		DigitLine:      r.DigitLine,
		Barcode:        r.Barcode,
		PixKey:         r.PixKey,
		DocumentType:   parseDocumentType(r.DocumentType),
		Hint:           parseHint(r.Hint),
		Confidence:     clampConfidence(r.Confidence),
		Rationale:      r.Rationale,
	}
	if ext.PixKey != "" {
		ext.PixKeyType = models.InferPixKeyType(ext.PixKey)
	}
	return ext
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func parseDocumentType(s string) models.DocumentTypeTag {
	switch models.DocumentTypeTag(s) {
	case models.DocTypeInvoice, models.DocTypeBoleto, models.DocTypeReceipt, models.DocTypeTaxGuide:
		return models.DocumentTypeTag(s)
	}
	return models.DocTypeOther
}

func parseHint(s string) models.ClassificationHint {
	switch models.ClassificationHint(s) {
	case models.HintRevenue, models.HintExpense:
		return models.ClassificationHint(s)
	}
	return models.HintUnknown
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
