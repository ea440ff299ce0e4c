package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

const tileArchive = "S2_tile_info.zip"

var ErrNoKML = errors.New("no .kml tile grid found")

// FindTileGrid returns the first .kml file of dir.
func FindTileGrid(dir string) (path string, err error) {
	if !utils.DirExists(dir) {
		err = ErrNoKML
		return
	}
	kmls, err := utils.ListFiles(dir, utils.FILE_EXT_KML)
	if err != nil {
		return
	}
	if len(kmls) == 0 {
		err = ErrNoKML
		return
	}
	path = kmls[0]
	return
}

// EnsureTileGrid downloads and extracts the tile grid archive into dir unless
// a .kml is already there, and returns the grid path.
func (f *Fetcher) EnsureTileGrid(ctx context.Context, url, dir string) (path string, err error) {
	if path, err = FindTileGrid(dir); err == nil {
		log.Debug(logTag+" tile grid present", zap.String("path", path))
		return
	}
	archive := filepath.Join(dir, tileArchive)
	if _, err = f.Fetch(ctx, url, archive); err != nil {
		return
	}
	defer os.Remove(archive)
	if _, err = utils.Unzip(archive, dir); err != nil {
		err = Error.Wrap(err)
		return
	}
	path, err = FindTileGrid(dir)
	return
}
