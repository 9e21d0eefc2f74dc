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

// Package objstore provides the object storage operations the pipeline
// needs against any S3-compatible store, plus a local-filesystem
// implementation for tests.
package objstore

import "context"

// ObjectInfo describes one stored object as returned by a listing.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Client provides a unified interface for object storage operations.
type Client interface {
	// ListObjects lists all objects in a bucket under the given prefix.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// DownloadObject downloads an object to a local file under tmpdir.
	// Returns the temp filename, size, whether the object was not found, and error.
	DownloadObject(ctx context.Context, tmpdir, bucket, key string) (filename string, size int64, notFound bool, err error)

	// UploadObject uploads a local file to object storage.
	UploadObject(ctx context.Context, bucket, key, sourceFilename string) error

	// DeleteObject deletes an object from object storage.
	DeleteObject(ctx context.Context, bucket, key string) error

	// ObjectExists reports whether an object is present. A transient
	// stat failure is returned as an error; callers that only need a
	// heuristic treat errors as "does not exist".
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)

	// EnsureBucket creates the bucket if it does not already exist.
	EnsureBucket(ctx context.Context, bucket string) error
}
