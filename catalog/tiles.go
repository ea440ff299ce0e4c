package catalog

import (
	"os"
	"path/filepath"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

// WriteTileList persists tile ids one per line. An empty list writes an empty file.
func WriteTileList(path string, ids []string) (err error) {
	if err = utils.EnsureDir(filepath.Dir(path)); err != nil {
		return
	}
	err = os.WriteFile(path, []byte(utils.JoinLines(ids)), 0o644)
	return
}

// ReadTileList reads a tile list, dropping blank lines.
func ReadTileList(path string) (ids []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	ids = utils.NonEmptyLines(string(data))
	return
}
