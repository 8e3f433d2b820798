package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/netx"
)

type FileSummary struct {
	FileID            string     `json:"fileId"`
	EncryptedFileName string     `json:"encryptedFileName"`
	FileSize          int64      `json:"fileSize"`
	BurnAfterRead     bool       `json:"burnAfterRead"`
	DownloadCount     int64      `json:"downloadCount"`
	ExpiresAt         *time.Time `json:"expiresAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	State             string     `json:"state"`
}

type Grant struct {
	ChallengeID string    `json:"challengeId"`
	Token       string    `json:"grant"`
	ExpiresAt   time.Time `json:"grantExpiresAt"`
}

// DownloadMetadata carries everything needed to fetch and decrypt the blob.
type DownloadMetadata struct {
	FileID               string    `json:"fileId"`
	EncryptedFileName    string    `json:"encryptedFileName"`
	FileSize             int64     `json:"fileSize"`
	FileSalt             []byte    `json:"fileSalt"`
	FileIV               []byte    `json:"fileIv"`
	MasterKeyHash        string    `json:"masterKeyHash"`
	MetadataIV           []byte    `json:"metadataIv"`
	BurnAfterRead        bool      `json:"burnAfterRead"`
	DownloadURL          string    `json:"downloadUrl"`
	DownloadURLExpiresAt time.Time `json:"downloadUrlExpiresAt"`
}

type DownloadReceipt struct {
	DownloadCount int64 `json:"downloadCount"`
	Burned        bool  `json:"burned"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/v1",
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) filePath(fileID, suffix string) string {
	return "/files/" + url.PathEscape(fileID) + suffix
}

func (c *Client) Describe(ctx context.Context, fileID string) (*FileSummary, error) {
	var out FileSummary
	if err := c.do(ctx, http.MethodGet, c.filePath(fileID, ""), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Verify(ctx context.Context, fileID, phone, code string) (*Grant, error) {
	body := map[string]string{"phone": phone, "code": code}
	var out Grant
	if err := c.do(ctx, http.MethodPost, c.filePath(fileID, "/verify"), "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DownloadMetadata(ctx context.Context, fileID, grant string) (*DownloadMetadata, error) {
	var out DownloadMetadata
	if err := c.do(ctx, http.MethodGet, c.filePath(fileID, "/download"), grant, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordDownload(ctx context.Context, fileID, grant string) (*DownloadReceipt, error) {
	var out DownloadReceipt
	if err := c.do(ctx, http.MethodPost, c.filePath(fileID, "/downloads"), grant, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchBlob streams the encrypted blob behind a presigned URL into w.
func (c *Client) FetchBlob(ctx context.Context, presignedURL string, w io.Writer) (int64, error) {
	return netx.DownloadFromPresignedURL(ctx, c.http, presignedURL, w)
}

func (c *Client) do(ctx context.Context, method, path, grant string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if grant != "" {
		req.Header.Set("X-Download-Grant", grant)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var env struct {
		Error APIError `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "internal", Message: strings.TrimSpace(string(raw))}
	}
	env.Error.Status = resp.StatusCode
	return &env.Error
}
