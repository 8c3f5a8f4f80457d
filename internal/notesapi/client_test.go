package notesapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestGenerateSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate_notes", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Quantum Physics", body["topic"])
		assert.Equal(t, "short", body["preference"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pdf_path":"/static/notes/quantum.pdf"}`))
	})

	pdfPath, err := client.Generate(context.Background(), "Quantum Physics", PreferenceShort)
	require.NoError(t, err)
	assert.Equal(t, "/static/notes/quantum.pdf", pdfPath)
}

func TestGenerateBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	})

	_, err := client.Generate(context.Background(), "History", PreferenceLong)
	require.Error(t, err)
	assert.Equal(t, "model unavailable", err.Error())
}

func TestGenerateMissingPDFPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Generate(context.Background(), "History", PreferenceShort)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDF path not found")
}

func TestGenerateEmptyTopic(t *testing.T) {
	client := NewClient("http://localhost:0")

	_, err := client.Generate(context.Background(), "   ", PreferenceShort)
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestGenerateTruncatesLongTopic(t *testing.T) {
	long := strings.Repeat("x", MaxTopicLength+25)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body["topic"], MaxTopicLength)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pdf_path":"/static/notes/x.pdf"}`))
	})

	_, err := client.Generate(context.Background(), long, PreferenceShort)
	require.NoError(t, err)
}
