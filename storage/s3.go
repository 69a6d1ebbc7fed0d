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
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend serves s3://bucket/key paths using the SDK default
// credential chain. Uploads stream through the transfer manager so a
// file never has to fit in memory.
type S3Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
}

func NewS3Backend(ctx context.Context) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Backend{client: client, uploader: manager.NewUploader(client)}, nil
}

func (b *S3Backend) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key := splitBucket(p)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %q: %w", p, err)
	}
	return out.Body, nil
}

func (b *S3Backend) OpenRange(ctx context.Context, p string) (RangeReader, error) {
	size, err := b.Size(ctx, p)
	if err != nil {
		return nil, err
	}
	return &s3Range{ctx: ctx, b: b, path: p, size: size}, nil
}

type s3Range struct {
	ctx  context.Context
	b    *S3Backend
	path string
	size int64
}

func (r *s3Range) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}
	bucket, key := splitBucket(r.path)
	out, err := r.b.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()
	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err == nil && off+int64(n) == r.size {
		if n < len(p) {
			return n, io.EOF
		}
	}
	return n, err
}

func (r *s3Range) Size() int64  { return r.size }
func (r *s3Range) Close() error { return nil }

func (b *S3Backend) Create(ctx context.Context, p string) (FileWriter, error) {
	bucket, key := splitBucket(p)
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		pr.CloseWithError(err)
		done <- err
	}()
	return &s3Writer{ctx: ctx, b: b, path: p, pw: pw, done: done}, nil
}

type s3Writer struct {
	ctx  context.Context
	b    *S3Backend
	path string
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *s3Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

// Abort fails the in-flight upload and best-effort deletes any object
// the multipart upload may already have committed.
func (w *s3Writer) Abort() error {
	w.pw.CloseWithError(context.Canceled)
	<-w.done
	w.b.Remove(w.ctx, w.path)
	return nil
}

func (b *S3Backend) Size(ctx context.Context, p string) (int64, error) {
	bucket, key := splitBucket(p)
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("stat s3 object %q: %w", p, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (b *S3Backend) IsDir(ctx context.Context, p string) (bool, error) {
	bucket, key := splitBucket(p)
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err == nil {
		return false, nil
	}
	files, err := b.list(ctx, p, 1)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

func (b *S3Backend) List(ctx context.Context, dir string) ([]string, error) {
	return b.list(ctx, dir, -1)
}

func (b *S3Backend) list(ctx context.Context, dir string, max int) ([]string, error) {
	bucket, prefix := splitBucket(dir)
	prefix = strings.TrimSuffix(prefix, "/") + "/"

	var files []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3 prefix %q: %w", dir, err)
		}
		for _, obj := range page.Contents {
			files = append(files, bucket+"/"+aws.ToString(obj.Key))
			if max > 0 && len(files) >= max {
				return files, nil
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func (b *S3Backend) Remove(ctx context.Context, p string) error {
	bucket, key := splitBucket(p)
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

func (b *S3Backend) MkdirAll(context.Context, string) error { return nil }

func (b *S3Backend) Join(elem ...string) string { return path.Join(elem...) }
