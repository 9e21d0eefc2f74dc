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

package aiclient

import (
	"context"

	"github.com/cardinalhq/inletrunner/internal/registry"
)

// OCR extracts text from an image or PDF file.
func (c *Client) OCR(ctx context.Context, filePath string) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	err := c.postFile(ctx, "ocr", "/ocr/ocr", filePath,
		map[string]string{"lang": c.cfg.OCRLanguages}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Transcribe extracts a transcript from an audio or video file.
func (c *Client) Transcribe(ctx context.Context, filePath string) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	err := c.postFile(ctx, "transcription", "/transcription/transcribe", filePath,
		map[string]string{"language": c.cfg.TranscribeLang}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Translate normalizes text into the pipeline's working language using the
// configured fixed source/target pair.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	req := map[string]string{
		"text":        text,
		"source_lang": c.cfg.SourceLang,
		"target_lang": c.cfg.TargetLang,
	}
	var resp struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := c.postJSON(ctx, "translation", "/translation/translate", req, &resp); err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

// ExtractRows asks the schema-extraction collaborator to structure text into
// rows matching the given columns. The row payload key is lenient: some
// model backends answer with "rows", others with "data" or "records".
func (c *Client) ExtractRows(ctx context.Context, text string, columns []registry.Column) ([]map[string]any, error) {
	req := map[string]any{
		"text":   text,
		"schema": columns,
	}
	var resp struct {
		Rows    []map[string]any `json:"rows"`
		Data    []map[string]any `json:"data"`
		Records []map[string]any `json:"records"`
	}
	if err := c.postJSON(ctx, "schema-extraction", "/schema/extract", req, &resp); err != nil {
		return nil, err
	}
	switch {
	case resp.Rows != nil:
		return resp.Rows, nil
	case resp.Data != nil:
		return resp.Data, nil
	case resp.Records != nil:
		return resp.Records, nil
	default:
		return nil, nil
	}
}
