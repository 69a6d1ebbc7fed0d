// --------------------------------------------------------------------------------
// This file is part of the tabarc project.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
// --------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBackend serves gs://bucket/key paths. Authentication uses
// GOOGLE_APPLICATION_CREDENTIALS when set, else the default chain.
type GCSBackend struct {
	client *gcs.Client
}

func NewGCSBackend(ctx context.Context) (*GCSBackend, error) {
	var opts []option.ClientOption
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSBackend{client: client}, nil
}

func splitBucket(p string) (bucket, key string) {
	bucket, key, _ = strings.Cut(p, "/")
	return bucket, key
}

func (b *GCSBackend) object(p string) *gcs.ObjectHandle {
	bucket, key := splitBucket(p)
	return b.client.Bucket(bucket).Object(key)
}

func (b *GCSBackend) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	return b.object(p).NewReader(ctx)
}

func (b *GCSBackend) OpenRange(ctx context.Context, p string) (RangeReader, error) {
	obj := b.object(p)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("stat gs object %q: %w", p, err)
	}
	return &gcsRange{ctx: ctx, obj: obj, size: attrs.Size}, nil
}

type gcsRange struct {
	ctx  context.Context
	obj  *gcs.ObjectHandle
	size int64
}

func (r *gcsRange) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	rd, err := r.obj.NewRangeReader(r.ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rd.Close()
	n, err := io.ReadFull(rd, p)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		if off+int64(n) == r.size {
			return n, io.EOF
		}
	}
	return n, err
}

func (r *gcsRange) Size() int64  { return r.size }
func (r *gcsRange) Close() error { return nil }

func (b *GCSBackend) Create(ctx context.Context, p string) (FileWriter, error) {
	wctx, cancel := context.WithCancel(ctx)
	return &gcsWriter{w: b.object(p).NewWriter(wctx), cancel: cancel}, nil
}

type gcsWriter struct {
	w      *gcs.Writer
	cancel context.CancelFunc
}

func (w *gcsWriter) Write(p []byte) (int, error) { return w.w.Write(p) }

func (w *gcsWriter) Close() error {
	defer w.cancel()
	return w.w.Close()
}

// Abort cancels the upload context before closing, so the object is
// never committed.
func (w *gcsWriter) Abort() error {
	w.cancel()
	w.w.Close()
	return nil
}

func (b *GCSBackend) Size(ctx context.Context, p string) (int64, error) {
	attrs, err := b.object(p).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (b *GCSBackend) IsDir(ctx context.Context, p string) (bool, error) {
	if _, err := b.object(p).Attrs(ctx); err == nil {
		return false, nil
	} else if !errors.Is(err, gcs.ErrObjectNotExist) {
		return false, err
	}
	files, err := b.list(ctx, p, 1)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

func (b *GCSBackend) List(ctx context.Context, dir string) ([]string, error) {
	return b.list(ctx, dir, -1)
}

func (b *GCSBackend) list(ctx context.Context, dir string, max int) ([]string, error) {
	bucket, prefix := splitBucket(dir)
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	it := b.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})

	var files []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs prefix %q: %w", dir, err)
		}
		files = append(files, bucket+"/"+attrs.Name)
		if max > 0 && len(files) >= max {
			break
		}
	}
	return files, nil
}

func (b *GCSBackend) Remove(ctx context.Context, p string) error {
	return b.object(p).Delete(ctx)
}

func (b *GCSBackend) MkdirAll(context.Context, string) error { return nil }

func (b *GCSBackend) Join(elem ...string) string { return path.Join(elem...) }
