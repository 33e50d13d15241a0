package storage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildKey(t *testing.T) {
	now := time.Date(2026, 3, 7, 10, 30, 0, 0, time.UTC)

	key := BuildKey("documentos", "matriz", "Boleto Energia.PDF", now)
	assert.Equal(t, fmt.Sprintf("documentos/matriz/2026/03/%d_boleto_energia.pdf", now.UnixNano()), key)
	assert.False(t, strings.Contains(key, ".."))
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and keeps extension", "Nota.PDF", "nota.pdf"},
		{"spaces become underscores", "boleto energia março.pdf", "boleto_energia_mar_o.pdf"},
		{"path components are stripped", "../../etc/passwd", "passwd"},
		{"allowed punctuation survives", "nf-123_v2.final.pdf", "nf-123_v2.final.pdf"},
		{"empty falls back", "", "documento"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, validateKey("documentos/matriz/2026/03/arquivo.pdf"))
	assert.Error(t, validateKey("documentos/../segredos/arquivo.pdf"))
	assert.Error(t, validateKey(".."))
}
