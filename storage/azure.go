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
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBackend serves container/blob paths against one storage account.
// Authentication tries AZURE_STORAGE_KEY shared-key credentials first,
// then the default Azure credential chain (environment, managed
// identity, CLI login).
type AzureBackend struct {
	client  *azblob.Client
	account string
}

func NewAzureBackend(account string) (*AzureBackend, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", account)

	if key := os.Getenv("AZURE_STORAGE_KEY"); key != "" {
		cred, err := azblob.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client: %w", err)
		}
		return &AzureBackend{client: client, account: account}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve Azure credentials for account %q: %w", account, err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureBackend{client: client, account: account}, nil
}

func (b *AzureBackend) split(p string) (container, blob string) {
	return splitBucket(p)
}

func (b *AzureBackend) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	container, blob := b.split(p)
	resp, err := b.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("download az blob %q: %w", p, err)
	}
	return resp.Body, nil
}

func (b *AzureBackend) OpenRange(ctx context.Context, p string) (RangeReader, error) {
	size, err := b.Size(ctx, p)
	if err != nil {
		return nil, err
	}
	return &azureRange{ctx: ctx, b: b, path: p, size: size}, nil
}

type azureRange struct {
	ctx  context.Context
	b    *AzureBackend
	path string
	size int64
}

func (r *azureRange) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	count := int64(len(p))
	if off+count > r.size {
		count = r.size - off
	}
	container, blob := r.b.split(r.path)
	resp, err := r.b.client.DownloadStream(r.ctx, container, blob, &azblob.DownloadStreamOptions{
		Range: azblob.HTTPRange{Offset: off, Count: count},
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.ReadFull(resp.Body, p[:count])
	if err == nil && off+int64(n) == r.size && n < len(p) {
		return n, io.EOF
	}
	return n, err
}

func (r *azureRange) Size() int64  { return r.size }
func (r *azureRange) Close() error { return nil }

func (b *AzureBackend) Create(ctx context.Context, p string) (FileWriter, error) {
	container, blob := b.split(p)
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := b.client.UploadStream(ctx, container, blob, pr, nil)
		pr.CloseWithError(err)
		done <- err
	}()
	return &azureWriter{ctx: ctx, b: b, path: p, pw: pw, done: done}, nil
}

type azureWriter struct {
	ctx  context.Context
	b    *AzureBackend
	path string
	pw   *io.PipeWriter
	done chan error
}

func (w *azureWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *azureWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

func (w *azureWriter) Abort() error {
	w.pw.CloseWithError(context.Canceled)
	<-w.done
	w.b.Remove(w.ctx, w.path)
	return nil
}

func (b *AzureBackend) Size(ctx context.Context, p string) (int64, error) {
	container, blob := b.split(p)
	props, err := b.client.ServiceClient().
		NewContainerClient(container).
		NewBlobClient(blob).
		GetProperties(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("stat az blob %q: %w", p, err)
	}
	if props.ContentLength == nil {
		return 0, fmt.Errorf("stat az blob %q: no content length", p)
	}
	return *props.ContentLength, nil
}

func (b *AzureBackend) IsDir(ctx context.Context, p string) (bool, error) {
	if _, err := b.Size(ctx, p); err == nil {
		return false, nil
	} else if !isBlobNotFound(err) {
		return false, err
	}
	files, err := b.list(ctx, p, 1)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

func isBlobNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return bloberror.HasCode(respErr, bloberror.BlobNotFound, bloberror.ContainerNotFound)
	}
	return false
}

func (b *AzureBackend) List(ctx context.Context, dir string) ([]string, error) {
	return b.list(ctx, dir, -1)
}

func (b *AzureBackend) list(ctx context.Context, dir string, max int) ([]string, error) {
	container, prefix := b.split(dir)
	prefix = strings.TrimSuffix(prefix, "/") + "/"

	var files []string
	pager := b.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list az prefix %q: %w", dir, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			files = append(files, container+"/"+*item.Name)
			if max > 0 && len(files) >= max {
				return files, nil
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func (b *AzureBackend) Remove(ctx context.Context, p string) error {
	container, blob := b.split(p)
	_, err := b.client.DeleteBlob(ctx, container, blob, nil)
	return err
}

func (b *AzureBackend) MkdirAll(context.Context, string) error { return nil }

func (b *AzureBackend) Join(elem ...string) string { return path.Join(elem...) }
