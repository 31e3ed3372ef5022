package kalbio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// File describes an upload: its file name, content stream, and MIME type.
type File struct {
	// Name is the file name sent in the multipart form.
	Name string
	// Reader supplies the file content.
	Reader io.Reader
	// ContentType is the MIME type of the file content.
	ContentType string
}

// buildHeaders assembles the headers for an authenticated request. Order of
// precedence, lowest to highest: base content type, primary bearer token,
// identity-proxy token, caller-configured static headers.
func (c *Client) buildHeaders(ctx context.Context) (http.Header, error) {
	accessToken, err := c.ensureAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	proxyToken, err := c.ensureProxyToken(ctx)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Kal-Authorization", "Bearer "+accessToken)
	if proxyToken != "" {
		headers.Set("Authorization", "Bearer "+proxyToken)
	}
	for k, v := range c.extraHeaders {
		headers.Set(k, v)
	}
	return headers, nil
}

// do executes one authenticated request. contentType, when non-empty,
// replaces the default JSON content type (multipart uploads carry their
// boundary type instead). Transport errors propagate to the caller; status
// handling is left to the verb helpers.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, string, error) {
	requestID := uuid.NewString()[:8]

	headers, err := c.buildHeaders(ctx)
	if err != nil {
		return nil, requestID, err
	}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	endpoint := c.apiURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, requestID, fmt.Errorf("kalbio: failed to create %s request: %w", method, err)
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, requestID, fmt.Errorf("kalbio: %s %s failed: %w", method, path, err)
	}
	return resp, requestID, nil
}

// finish drains the response and applies the uniform status contract: any
// status >= 400 is logged and converted to the zero Result, everything else
// yields the decoded JSON body (or the zero Result when the body is not
// JSON).
func finish(resp *http.Response, requestID, method, path string) Result {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithField("request_id", requestID).Errorf("%s %s failed reading body: %v", method, path, err)
		return Result{}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		log.WithField("request_id", requestID).Errorf("%s %s received %d: %s", method, path, resp.StatusCode, body)
		return Result{}
	}
	return newResult(body)
}

// Get issues a GET with the query encoded onto the path and returns the
// decoded JSON body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (Result, error) {
	resp, requestID, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return Result{}, err
	}
	return finish(resp, requestID, http.MethodGet, path), nil
}

// Post serializes payload as the JSON request body and issues a POST.
func (c *Client) Post(ctx context.Context, path string, payload any) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("kalbio: failed to encode POST payload: %w", err)
	}
	resp, requestID, err := c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(body), "")
	if err != nil {
		return Result{}, err
	}
	return finish(resp, requestID, http.MethodPost, path), nil
}

// Put serializes payload as the JSON request body and issues a PUT.
func (c *Client) Put(ctx context.Context, path string, payload any) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("kalbio: failed to encode PUT payload: %w", err)
	}
	resp, requestID, err := c.do(ctx, http.MethodPut, path, nil, bytes.NewReader(body), "")
	if err != nil {
		return Result{}, err
	}
	return finish(resp, requestID, http.MethodPut, path), nil
}

// Delete issues a DELETE with the query encoded onto the path.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (Result, error) {
	resp, requestID, err := c.do(ctx, http.MethodDelete, path, query, nil, "")
	if err != nil {
		return Result{}, err
	}
	return finish(resp, requestID, http.MethodDelete, path), nil
}

// PostFile issues a multipart POST carrying the file under the "file" part
// and, when body is non-nil, its JSON serialization under the "body" form
// field.
func (c *Client) PostFile(ctx context.Context, path string, file File, body any) (Result, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	partHeader.Set("Content-Type", file.ContentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return Result{}, fmt.Errorf("kalbio: failed to create multipart file part: %w", err)
	}
	if _, err = io.Copy(part, file.Reader); err != nil {
		return Result{}, fmt.Errorf("kalbio: failed to write multipart file part: %w", err)
	}

	if body != nil {
		encoded, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return Result{}, fmt.Errorf("kalbio: failed to encode upload body: %w", errMarshal)
		}
		if err = writer.WriteField("body", string(encoded)); err != nil {
			return Result{}, fmt.Errorf("kalbio: failed to write multipart body field: %w", err)
		}
	}
	if err = writer.Close(); err != nil {
		return Result{}, fmt.Errorf("kalbio: failed to finalize multipart form: %w", err)
	}

	resp, requestID, err := c.do(ctx, http.MethodPost, path, nil, &buf, writer.FormDataContentType())
	if err != nil {
		return Result{}, err
	}
	return finish(resp, requestID, http.MethodPost, path), nil
}

// GetFile issues a streaming GET and writes the body to downloadPath in
// fixed-size chunks. Only responses whose Content-Type is in the download
// allow-list are saved; anything else is logged and discarded. It returns
// the destination path, or "" when the download was rejected or failed.
func (c *Client) GetFile(ctx context.Context, path, downloadPath string, query url.Values) (string, error) {
	resp, requestID, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	logger := log.WithField("request_id", requestID)

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		logger.Errorf("GET %s received %d: %s", path, resp.StatusCode, body)
		return "", nil
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	if !validDownloadContentType(mediaType) {
		logger.Errorf("GET %s returned invalid Content-Type %q, response does not contain valid file data", path, contentType)
		return "", nil
	}

	f, err := os.Create(downloadPath)
	if err != nil {
		return "", fmt.Errorf("kalbio: failed to create download file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, downloadChunkSize)
	if _, err = io.CopyBuffer(f, resp.Body, buf); err != nil {
		return "", fmt.Errorf("kalbio: failed to write download file: %w", err)
	}
	return downloadPath, nil
}
