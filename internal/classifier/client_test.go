package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/safehug/internal/risk"
	"github.com/wolfman30/safehug/pkg/logging"
)

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "chat-files/u1.txt", req.S3Path)
		assert.Equal(t, "evidence-bucket", req.BucketName)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":1,"date":"2024-01-01","message":"안녕","risks":[]}],"keywords":[{"keyword":"안녕","count":1,"risk":"NORMAL"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "evidence-bucket", WithLogger(logging.Discard()))
	resp, err := c.Classify(context.Background(), "chat-files/u1.txt")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "안녕", resp.Messages[0].Message)
	assert.Len(t, resp.Keywords, 1)
}

func TestClassifyMissingMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"keywords":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "b", WithLogger(logging.Discard())).Classify(context.Background(), "k")
	assert.ErrorIs(t, err, risk.ErrMissingClassification)
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "b", WithLogger(logging.Discard())).Classify(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.NotErrorIs(t, err, risk.ErrMissingClassification)
}

func TestClassifyNotConfigured(t *testing.T) {
	_, err := NewClient("", "b").Classify(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
