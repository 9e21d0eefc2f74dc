// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package aiclient talks to the extraction collaborators: OCR,
// transcription, translation and schema extraction. Each is a stateless
// remote call behind a shared base URL; a failure of any of them is fatal
// for the file being processed.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cardinalhq/inletrunner/config"
)

// ServiceError marks a collaborator failure, carrying which service failed.
type ServiceError struct {
	Service string
	Status  int
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client calls the extraction collaborators.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	cfg     config.ServicesConfig
}

// NewClient builds a collaborator client from configuration.
func NewClient(cfg config.ServicesConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(slog.String("component", "aiclient")),
		cfg:     cfg,
	}
}

// postJSON sends a JSON body and decodes the JSON response into out.
func (c *Client) postJSON(ctx context.Context, service, path string, body any, out any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return &ServiceError{Service: service, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bs))
	if err != nil {
		return &ServiceError{Service: service, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, service, out)
}

// postFile sends a local file as a multipart upload plus extra form fields.
func (c *Client) postFile(ctx context.Context, service, path, filePath string, fields map[string]string, out any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return &ServiceError{Service: service, Err: fmt.Errorf("open %s: %w", filePath, err)}
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filePath)))
	hdr.Set("Content-Type", contentTypeFor(filePath))
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return &ServiceError{Service: service, Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return &ServiceError{Service: service, Err: fmt.Errorf("buffer %s: %w", filePath, err)}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return &ServiceError{Service: service, Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return &ServiceError{Service: service, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return &ServiceError{Service: service, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.send(req, service, out)
}

func (c *Client) send(req *http.Request, service string, out any) error {
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return &ServiceError{Service: service, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ServiceError{Service: service, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("collaborator response",
		slog.String("service", service),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode/100 != 2 {
		return &ServiceError{Service: service, Status: resp.StatusCode, Err: fmt.Errorf("non-2xx response")}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &ServiceError{Service: service, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func contentTypeFor(filePath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
