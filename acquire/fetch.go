// Package acquire gets data into the catalog: the download client script, the
// Sentinel-2 tile grid, product archives fetched per tile and product, and
// their extraction into date folders.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

// Error is the class of collaborator failures: empty downloads, failing
// client runs. The affected unit is absent downstream.
var Error = errs.Class("acquire")

var (
	ErrEmptyDownload = errors.New("downloaded file is empty")
	ErrHTTPStatus    = errors.New("unexpected http status")
)

const (
	logTag         = "Acquire:"
	DefaultTimeout = 10 * time.Minute
)

// Fetcher downloads URLs to files.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch downloads url to dst through a temporary sibling file, so dst is
// either complete or untouched. An empty payload is an error.
func (f *Fetcher) Fetch(ctx context.Context, url, dst string) (size int64, err error) {
	if err = utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = Error.Wrap(err)
		return
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		err = Error.Wrap(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err = Error.Wrap(fmt.Errorf("%w: %d %s", ErrHTTPStatus, resp.StatusCode, url))
		return
	}
	tmp := filepath.Join(filepath.Dir(dst), ".download-"+uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return
	}
	defer os.Remove(tmp)
	size, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		err = Error.Wrap(err)
		return
	}
	if size == 0 {
		err = Error.Wrap(fmt.Errorf("%w: %s", ErrEmptyDownload, url))
		return
	}
	if err = os.Rename(tmp, dst); err != nil {
		return
	}
	log.Info(logTag+" fetched", zap.String("url", url), zap.String("path", dst), zap.Int64("bytes", size))
	return
}

// EnsureDownloader fetches the download client script unless a non-empty copy exists.
func (f *Fetcher) EnsureDownloader(ctx context.Context, url, path string) (err error) {
	if utils.FileSize(path) > 0 {
		log.Debug(logTag+" download client present", zap.String("path", path))
		return
	}
	_, err = f.Fetch(ctx, url, path)
	return
}
