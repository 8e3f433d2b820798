package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Verify(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/files/f-1/verify", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"challengeId":    "c-1",
			"grant":          "g.t.k",
			"grantExpiresAt": "2026-03-01T12:10:00Z",
		})
	}))
	defer ts.Close()

	c := New(ts.URL+"/", time.Second)
	g, err := c.Verify(context.Background(), "f-1", "+15551234567", "123456")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"phone": "+15551234567", "code": "123456"}, got)
	assert.Equal(t, "c-1", g.ChallengeID)
	assert.Equal(t, "g.t.k", g.Token)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), g.ExpiresAt.UTC())
}

func TestClient_BadCodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{
			"code": "bad_code", "message": "wrong passcode", "attemptsLeft": 1,
		}})
	}))
	defer ts.Close()

	_, err := New(ts.URL, time.Second).Verify(context.Background(), "f-1", "+15551234567", "000000")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.NotNil(t, apiErr.AttemptsLeft)
	assert.Equal(t, 1, *apiErr.AttemptsLeft)
	assert.ErrorIs(t, err, common.ErrBadCode)
}

func TestClient_ErrorCodesMapToSentinels(t *testing.T) {
	cases := map[string]error{
		"not_found":    common.ErrNotFound,
		"expired":      common.ErrExpired,
		"consumed":     common.ErrConsumed,
		"rate_limited": common.ErrRateLimited,
		"not_verified": common.ErrNotVerified,
		"mystery":      common.ErrInternal,
	}
	for code, want := range cases {
		t.Run(code, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusGone, map[string]any{"error": map[string]any{"code": code, "message": code}})
			}))
			defer ts.Close()

			_, err := New(ts.URL, time.Second).Describe(context.Background(), "f-1")
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL, time.Second).Describe(context.Background(), "f-1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestClient_GrantHeaderAndDownload(t *testing.T) {
	blob := []byte("ciphertext")
	var grants []string

	mux := http.NewServeMux()
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Download-Grant"), "grant must not leak to the object store")
		_, _ = w.Write(blob)
	})
	var ts *httptest.Server
	mux.HandleFunc("/v1/files/f-1/download", func(w http.ResponseWriter, r *http.Request) {
		grants = append(grants, r.Header.Get("X-Download-Grant"))
		writeJSON(w, http.StatusOK, map[string]any{
			"fileId": "f-1", "fileSalt": []byte{1, 2}, "downloadUrl": ts.URL + "/blob", "burnAfterRead": true,
		})
	})
	mux.HandleFunc("/v1/files/f-1/downloads", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		grants = append(grants, r.Header.Get("X-Download-Grant"))
		writeJSON(w, http.StatusOK, map[string]any{"downloadCount": 1, "burned": true})
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	c := New(ts.URL, time.Second)
	ctx := context.Background()

	md, err := c.DownloadMetadata(ctx, "f-1", "grant-token")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, md.FileSalt)
	assert.True(t, md.BurnAfterRead)

	var buf bytes.Buffer
	n, err := c.FetchBlob(ctx, md.DownloadURL, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(blob)), n)

	receipt, err := c.RecordDownload(ctx, "f-1", "grant-token")
	require.NoError(t, err)
	assert.Equal(t, &DownloadReceipt{DownloadCount: 1, Burned: true}, receipt)

	assert.Equal(t, []string{"grant-token", "grant-token"}, grants)
}

func TestClient_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	_, err := New(ts.URL, time.Second).Describe(context.Background(), "f-1")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}
