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

	"github.com/bd2kgenomics/spinnaker/pkg/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultRange asks for the first 64 bytes of an object.
	DefaultRange = "bytes=0-63"
	// MaxRangeBytes bounds what DownloadRange reads, whatever range was asked for.
	MaxRangeBytes = 1 << 20

	defaultTimeout = 60 * time.Second
	// replies of the storage server are small; this only protects against a broken server
	maxResolveBytes = 1 << 20
)

// StorageClient talks to a Redwood storage server. Objects are downloaded in two hops:
// the server resolves an object id into a signed URL and the URL is then fetched
// without credentials. Nothing is cached and nothing is retried.
type StorageClient struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
}

func NewStorageClient(baseURL, accessKey string, timeout time.Duration) *StorageClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &StorageClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accessKey: accessKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type resolveResponse struct {
	Parts []struct {
		URL string `json:"url"`
	} `json:"parts"`
}

// ResolveSignedURL asks the storage server for a time-limited URL of the whole object.
func (c *StorageClient) ResolveSignedURL(ctx context.Context, objectID string) (string, error) {
	start := time.Now()
	signedURL, err := c.resolve(ctx, objectID)
	metrics.ObserveStorageRequest(metrics.StorageOpResolve, outcome(err), start)
	return signedURL, err
}

func (c *StorageClient) resolve(ctx context.Context, objectID string) (string, error) {
	u := fmt.Sprintf("%s/download/%s?%s", c.baseURL, url.PathEscape(objectID), url.Values{
		"offset":   {"0"},
		"length":   {"-1"},
		"external": {"true"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", NewErrRemoteTransport(objectID, err)
	}
	req.Header.Set("AUTHORIZATION", fmt.Sprintf("Bearer %s", c.accessKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NewErrRemoteTransport(objectID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// the body is read whatever the status: error replies are JSON too
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResolveBytes))
	if err != nil {
		return "", NewErrRemoteTransport(objectID, fmt.Errorf("failed to read response body: %w", err))
	}

	if !json.Valid(body) {
		return "", NewErrRemoteTransport(objectID, fmt.Errorf("storage server returned status %d and a non json body", resp.StatusCode))
	}

	// valid json of another shape is a shape error, not a transport one
	var reply resolveResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", NewErrRemoteShape(objectID, body)
	}

	if len(reply.Parts) == 0 || reply.Parts[0].URL == "" {
		return "", NewErrRemoteShape(objectID, body)
	}

	zap.S().Named("storage_client").Debugw("signed url resolved", "object_id", objectID, "status", resp.StatusCode)

	return reply.Parts[0].URL, nil
}

// DownloadJSON downloads the whole object and decodes it as JSON. Numbers are kept
// as json.Number.
func (c *StorageClient) DownloadJSON(ctx context.Context, objectID string) (any, error) {
	signedURL, err := c.ResolveSignedURL(ctx, objectID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := c.download(ctx, objectID, signedURL, "", -1)
	if err != nil {
		metrics.ObserveStorageRequest(metrics.StorageOpDownload, outcome(err), start)
		return nil, err
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()
	err = decoder.Decode(&doc)
	if err == nil {
		// the object must hold a single document
		if _, terr := decoder.Token(); !errors.Is(terr, io.EOF) {
			err = fmt.Errorf("unexpected data after the json document at offset %d", decoder.InputOffset())
		}
	}
	if err != nil {
		derr := NewErrDecode(objectID, err)
		metrics.ObserveStorageRequest(metrics.StorageOpDownload, outcome(derr), start)
		return nil, derr
	}

	metrics.ObserveStorageRequest(metrics.StorageOpDownload, metrics.OutcomeSuccess, start)
	return doc, nil
}

// DownloadRange downloads part of the object. rangeSpec is sent verbatim as the Range
// header; an empty rangeSpec means DefaultRange. At most MaxRangeBytes are returned.
func (c *StorageClient) DownloadRange(ctx context.Context, objectID string, rangeSpec string) ([]byte, error) {
	if rangeSpec == "" {
		rangeSpec = DefaultRange
	}

	signedURL, err := c.ResolveSignedURL(ctx, objectID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := c.download(ctx, objectID, signedURL, rangeSpec, MaxRangeBytes)
	metrics.ObserveStorageRequest(metrics.StorageOpRange, outcome(err), start)
	return content, err
}

// download fetches the signed url. The signed url carries its own credentials so the
// access key is never sent here. A negative limit reads the whole body.
func (c *StorageClient) download(ctx context.Context, objectID, signedURL, rangeSpec string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, NewErrRemoteTransport(objectID, err)
	}
	if rangeSpec != "" {
		req.Header.Set("Range", rangeSpec)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewErrRemoteTransport(objectID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResolveBytes))
		return nil, NewErrRemoteTransport(objectID, fmt.Errorf("signed url returned status %d", resp.StatusCode))
	}

	var reader io.Reader = resp.Body
	if limit >= 0 {
		reader = io.LimitReader(resp.Body, limit)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewErrRemoteTransport(objectID, fmt.Errorf("failed to read object: %w", err))
	}

	return content, nil
}

func outcome(err error) string {
	switch e := err.(type) {
	case nil:
		return metrics.OutcomeSuccess
	case *ErrRemoteService:
		if e.Reason == RemoteReasonShape {
			return metrics.OutcomeShape
		}
		return metrics.OutcomeTransport
	case *ErrDecode:
		return metrics.OutcomeDecode
	default:
		return metrics.OutcomeTransport
	}
}
