package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

const (
	resultFile         = "result_file.txt"
	resultFileTemplate = "result_file_%s_%s.txt"
)

var ErrNoResultFile = errors.New("download client wrote no result file")

// Request is one download client call: one tile, one product, one date range.
type Request struct {
	Tile    string
	Product string
	Start   string
	End     string
	OutDir  string
}

// Outcome of a query. ResultFile is the renamed result list, "" when the
// client did not write one.
type Outcome struct {
	ResultFile string
}

// Querier is the download client capability.
type Querier interface {
	Query(ctx context.Context, req Request) (Outcome, error)
}

// CLIQuerier runs the CLMS HRSI download client script.
type CLIQuerier struct {
	Python      string
	Script      string
	QueryType   string
	Credentials string
}

// Args builds the client command line for req.
func (q *CLIQuerier) Args(req Request) []string {
	return []string{
		q.Script,
		"-" + q.QueryType,
		"-productIdentifier", req.Tile,
		"-productType", req.Product,
		"-obsDateMin", req.Start,
		"-obsDateMax", req.End,
		"-hrsi_credentials", q.Credentials,
		req.OutDir,
	}
}

// Query runs the client and renames its result_file.txt to
// result_file_{tile}_{product}.txt. A non-zero exit is an Error carrying the
// client's stderr.
func (q *CLIQuerier) Query(ctx context.Context, req Request) (out Outcome, err error) {
	if err = utils.EnsureDir(req.OutDir); err != nil {
		return
	}
	args := q.Args(req)
	log.Info(logTag+" running download client", zap.String("python", q.Python), zap.Strings("args", args))
	cmd := exec.CommandContext(ctx, q.Python, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err = cmd.Run(); err != nil {
		err = Error.New("download client for %s/%s: %v: %s", req.Tile, req.Product, err, bytes.TrimSpace(stderr.Bytes()))
		return
	}
	out.ResultFile, err = RenameResultFile(req.OutDir, req.Tile, req.Product)
	if errors.Is(err, ErrNoResultFile) {
		log.Warn(logTag+" no result file after download", zap.String("dir", req.OutDir), zap.String("tile", req.Tile))
		err = nil
	}
	return
}

// RenameResultFile disambiguates the client's result list per tile and product.
func RenameResultFile(dir, tile, product string) (path string, err error) {
	src := filepath.Join(dir, resultFile)
	if !utils.FileExists(src) {
		err = fmt.Errorf("%w: %s", ErrNoResultFile, src)
		return
	}
	path = filepath.Join(dir, fmt.Sprintf(resultFileTemplate, tile, product))
	if err = os.Rename(src, path); err != nil {
		path = ""
	}
	return
}
