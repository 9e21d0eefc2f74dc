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

package router

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// UnsupportedFileTypeError aborts routing for files whose extension maps to
// no extraction path; the worker quarantines the original object.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file extension: %s", e.Ext)
}

var directTextExts = map[string]bool{
	".csv":     true,
	".txt":     true,
	".json":    true,
	".md":      true,
	".parquet": true,
	".docx":    true,
	".doc":     true,
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

var mediaExts = map[string]bool{
	".mp4": true,
	".mp3": true,
	".m4a": true,
}

// extractText dispatches a downloaded file to its extraction path by
// extension: spreadsheets are flattened to CSV text, other tabular/text
// formats are read as-is, images and PDFs go to OCR, audio/video to
// transcription.
func (r *Router) extractText(ctx context.Context, localPath, objectName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(objectName))

	switch {
	case ext == ".xls" || ext == ".xlsx":
		return spreadsheetText(localPath)
	case directTextExts[ext]:
		data, err := os.ReadFile(localPath)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", localPath, err)
		}
		return string(data), nil
	case imageExts[ext]:
		return r.ai.OCR(ctx, localPath)
	case mediaExts[ext]:
		return r.ai.Transcribe(ctx, localPath)
	default:
		return "", &UnsupportedFileTypeError{Ext: ext}
	}
}

// spreadsheetText renders the first sheet of a workbook as CSV text.
func spreadsheetText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("render sheet as csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("render sheet as csv: %w", err)
	}
	return sb.String(), nil
}
