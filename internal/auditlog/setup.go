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

package auditlog

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Setup builds the process logger: human-readable records on stdout fanned
// out with the persistent audit handler. The returned closer flushes and
// releases the audit database.
func Setup(dbPath string, level slog.Level) (*slog.Logger, func() error, error) {
	audit, err := Open(dbPath, level)
	if err != nil {
		return nil, nil, fmt.Errorf("audit log setup: %w", err)
	}

	stdout := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(slogmulti.Fanout(stdout, audit))
	return logger, audit.Close, nil
}
