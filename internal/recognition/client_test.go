package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/drogafarto-web/docfiscal/internal/models"
	"github.com/drogafarto-web/docfiscal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.RecognitionConfig{
		Endpoint: serverURL,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	}, zap.NewNop())
}

func TestAnalyze(t *testing.T) {
	docBytes := []byte("%PDF-1.4 fake")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/analyze", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		require.NoError(t, err)
		assert.Equal(t, docBytes, decoded)
		assert.Equal(t, "application/pdf", req.MimeType)

		json.NewEncoder(w).Encode(analyzeResponse{
			IssuerName:     "Distribuidora Santa Cruz LTDA",
			IssuerTaxID:    "61940292000193",
			DocumentNumber: "12345",
			GrossAmount:    1543.20,
			DueDate:        "2026-09-28",
			DigitLine:      "34191790010104351004791020150008291070026000",
			PixKey:         "61940292000193",
			DocumentType:   "boleto",
			Hint:           "despesa",
			Confidence:     0.93,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ext, err := client.Analyze(context.Background(), docBytes, "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "Distribuidora Santa Cruz LTDA", ext.IssuerName)
	assert.Equal(t, models.DocTypeBoleto, ext.DocumentType)
	assert.Equal(t, models.HintExpense, ext.Hint)
	assert.Equal(t, 0.93, ext.Confidence)
	assert.Equal(t, time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC), ext.DueDate)
	assert.Equal(t, models.PixKeyCNPJ, ext.PixKeyType)
}

func TestAnalyzeErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"429 is rate limited", http.StatusTooManyRequests, "slow down", KindRateLimited},
		{"401 is auth failure", http.StatusUnauthorized, "bad key", KindAuthFailure},
		{"403 is auth failure", http.StatusForbidden, "forbidden", KindAuthFailure},
		{"504 is timeout", http.StatusGatewayTimeout, "upstream timeout", KindTimeout},
		{"quota text is rate limited", http.StatusBadRequest, "monthly quota exceeded", KindRateLimited},
		{"anything else is unknown", http.StatusInternalServerError, "boom", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.Analyze(context.Background(), []byte("x"), "image/png")
			var rerr *Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.want, rerr.Kind)
		})
	}
}

func TestAnalyzeUnknownKeepsMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("unexpected model output"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Analyze(context.Background(), []byte("x"), "image/png")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindUnknown, rerr.Kind)
	assert.Contains(t, rerr.Message, "unexpected model output")
	assert.Contains(t, rerr.UserMessage(), "unexpected model output")
}

func TestAnalyzeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches for client disconnect and
		// cancels the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Analyze(ctx, []byte("x"), "image/png")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindTimeout, rerr.Kind)
}

func TestAnalyzeNetworkError(t *testing.T) {
	// Nothing listens here.
	client := newTestClient("http://127.0.0.1:1")

	_, err := client.Analyze(context.Background(), []byte("x"), "image/png")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindNetwork, rerr.Kind)
}

func TestUserMessageFor(t *testing.T) {
	assert.Equal(t,
		"Serviço de reconhecimento ocupado. Tente novamente em alguns segundos.",
		UserMessageFor(&Error{Kind: KindRateLimited, Message: "429"}))
	assert.Equal(t,
		"O documento é muito grande ou complexo para análise.",
		UserMessageFor(&Error{Kind: KindTimeout}))
	assert.Equal(t, "plain failure", UserMessageFor(errors.New("plain failure")))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clampConfidence(-1))
	assert.Equal(t, 1.0, clampConfidence(3.7))
	assert.Equal(t, 0.5, clampConfidence(0.5))
}
