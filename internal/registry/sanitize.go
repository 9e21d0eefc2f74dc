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

package registry

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	unsafeChars  = regexp.MustCompile(`[^0-9a-zA-Z_]`)
	repeatedUnds = regexp.MustCompile(`_+`)
	leadingDigit = regexp.MustCompile(`^[0-9]`)
)

// SanitizeIdentifier turns an arbitrary column name into a safe identifier:
// characters outside [0-9a-zA-Z_] become underscores, runs of underscores
// collapse, trailing underscores are dropped, a leading digit gets an
// underscore prefix, and an empty result is replaced with a generated
// col_<8 hex> name.
func SanitizeIdentifier(name string) string {
	s := strings.TrimSpace(name)
	s = unsafeChars.ReplaceAllString(s, "_")
	s = repeatedUnds.ReplaceAllString(s, "_")
	s = strings.TrimRight(s, "_")
	if leadingDigit.MatchString(s) {
		s = "_" + s
	}
	if s == "" {
		s = "col_" + uuid.NewString()[:8]
	}
	return s
}
