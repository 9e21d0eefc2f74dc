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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/inletrunner/config"
	"github.com/cardinalhq/inletrunner/internal/registry"
)

func testConfig(url string) config.ServicesConfig {
	return config.ServicesConfig{
		BaseURL:        url,
		Timeout:        5 * time.Second,
		OCRLanguages:   "ces+eng",
		TranscribeLang: "cs",
		SourceLang:     "cs",
		TargetLang:     "en",
	}
}

func TestOCRSendsFileAndLanguageHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr/ocr", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ces+eng", r.FormValue("lang"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		assert.Equal(t, "scan.pdf", hdr.Filename)

		_, _ = w.Write([]byte(`{"text": "naskenovaný text"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	text, err := NewClient(testConfig(srv.URL), nil).OCR(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "naskenovaný text", text)
}

func TestTranslateRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/translation/translate", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cs", req["source_lang"])
		assert.Equal(t, "en", req["target_lang"])
		assert.Equal(t, "ahoj", req["text"])
		_, _ = w.Write([]byte(`{"translated_text": "hello"}`))
	}))
	defer srv.Close()

	out, err := NewClient(testConfig(srv.URL), nil).Translate(context.Background(), "ahoj")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestExtractRowsLenientKeys(t *testing.T) {
	cols := []registry.Column{{Name: "amount", Type: "float", Description: "total"}}

	for _, tt := range []struct {
		name string
		body string
		want int
	}{
		{"rows", `{"rows": [{"amount": 1}, {"amount": 2}]}`, 2},
		{"data", `{"data": [{"amount": 1}]}`, 1},
		{"records", `{"records": [{"amount": 1}, {"amount": 2}, {"amount": 3}]}`, 3},
		{"none", `{}`, 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/schema/extract", r.URL.Path)
				var req struct {
					Text   string            `json:"text"`
					Schema []registry.Column `json:"schema"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Len(t, req.Schema, 1)
				assert.Equal(t, "amount", req.Schema[0].Name)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			rows, err := NewClient(testConfig(srv.URL), nil).ExtractRows(context.Background(), "some text", cols)
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestServiceErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).Translate(context.Background(), "text")
	require.Error(t, err)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "translation", svcErr.Service)
	assert.Equal(t, http.StatusBadGateway, svcErr.Status)
}
