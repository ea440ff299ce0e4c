package acquire

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

// Downloader queries every relevant tile of every area for every product.
type Downloader struct {
	Querier  Querier
	Layout   catalog.Layout
	Products []string
	Start    string
	End      string
	// Clean wipes each product's acquisitions and stage outputs before the
	// first query into it.
	Clean bool
}

// Download runs one query per (tile, product) of each area. Areas without a
// tile list or with an empty one are skipped with a warning. Failed queries
// are collected and returned together; the remaining queries still run.
func (d *Downloader) Download(ctx context.Context, areas []string) (err error) {
	for _, area := range areas {
		tileFile := d.Layout.RelevantTilesFile(area)
		tiles, rerr := catalog.ReadTileList(tileFile)
		if rerr != nil {
			log.Warn(logTag+" no tile list, skipping area", zap.String("area", area), zap.Error(rerr))
			continue
		}
		if len(tiles) == 0 {
			log.Warn(logTag+" empty tile list, skipping area", zap.String("area", area), zap.String("path", tileFile))
			continue
		}
		for _, product := range d.Products {
			outDir := d.Layout.OriginalDir(area, product)
			if d.Clean {
				cerr := multierr.Append(Wipe(outDir), Wipe(d.Layout.ProcessedDir(area, product)))
				if cerr != nil {
					err = multierr.Append(err, cerr)
					continue
				}
			}
			for _, tile := range tiles {
				if ctx.Err() != nil {
					return multierr.Append(err, ctx.Err())
				}
				req := Request{Tile: tile, Product: product, Start: d.Start, End: d.End, OutDir: outDir}
				if _, qerr := d.Querier.Query(ctx, req); qerr != nil {
					log.Warn(logTag+" query failed", zap.String("area", area), zap.String("tile", tile), zap.String("product", product), zap.Error(qerr))
					err = multierr.Append(err, qerr)
				}
			}
		}
	}
	return
}

// Wipe removes a directory tree and recreates it empty.
func Wipe(dir string) (err error) {
	if err = os.RemoveAll(dir); err != nil {
		return
	}
	log.Info(logTag+" wiped", zap.String("dir", dir))
	return utils.EnsureDir(dir)
}

// UnzipArchives extracts every .zip of an area's product directories in
// place and deletes each archive once extracted. A corrupt archive is kept
// and reported; the others are still extracted.
func UnzipArchives(layout catalog.Layout, areas, products []string) (extracted int, err error) {
	for _, area := range areas {
		for _, product := range products {
			dir := layout.OriginalDir(area, product)
			if !utils.DirExists(dir) {
				log.Warn(logTag+" directory not found", zap.String("dir", dir))
				continue
			}
			zips, lerr := utils.ListFiles(dir, utils.FILE_EXT_ZIP)
			if lerr != nil {
				err = multierr.Append(err, lerr)
				continue
			}
			for _, z := range zips {
				files, uerr := utils.Unzip(z, dir)
				if uerr != nil {
					log.Warn(logTag+" unzip failed", zap.String("zip", z), zap.Error(uerr))
					err = multierr.Append(err, Error.Wrap(uerr))
					continue
				}
				if rerr := os.Remove(z); rerr != nil {
					err = multierr.Append(err, rerr)
				}
				extracted++
				log.Info(logTag+" unzipped", zap.String("zip", filepath.Base(z)), zap.Int("files", len(files)))
			}
		}
	}
	return
}
