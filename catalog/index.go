package catalog

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

var (
	ErrNoDir = errors.New("catalog directory not found")
)

// Entry is one raster of a scanned subtree.
type Entry struct {
	Folder string // date folder, or DirMosaic
	Date   string // "" when neither folder nor file carries one
	Name   Name
	Path   string
}

func (e Entry) Base() string {
	return filepath.Base(e.Path)
}

// Skip records a file or folder left out of an index and why.
type Skip struct {
	Path   string
	Reason error
}

// Index is a product subtree parsed once at stage start.
type Index struct {
	Root    string
	Folders []Entry // per-date-folder rasters, ordered by folder then file
	Mosaics []Entry
	Skipped []Skip
}

// GroupKey identifies the rasters merged into one mosaic.
type GroupKey struct {
	Date  string
	Layer string
}

// Scan walks root (one product of one stage): every sub folder except the
// mosaic folder and exclude, plus the mosaic folder itself. A missing root
// yields ErrNoDir; a missing mosaic folder is an empty mosaic list.
func Scan(root string, exclude ...string) (idx *Index, err error) {
	if !utils.DirExists(root) {
		err = fmt.Errorf("%w: %s", ErrNoDir, root)
		return
	}
	idx = &Index{Root: root}
	folders, err := utils.ListSubDirs(root, append([]string{DirMosaic}, exclude...)...)
	if err != nil {
		return
	}
	for _, folder := range folders {
		var files []string
		if files, err = utils.ListFiles(filepath.Join(root, folder), ExtTif); err != nil {
			return
		}
		folderDate, _ := DateOf(folder)
		for _, f := range files {
			n, e := Parse(f)
			if e != nil {
				idx.Skipped = append(idx.Skipped, Skip{Path: f, Reason: e})
				continue
			}
			date := folderDate
			if date == "" {
				date, _ = DateOf(f)
			}
			idx.Folders = append(idx.Folders, Entry{Folder: folder, Date: date, Name: n, Path: f})
		}
	}
	mosaicDir := filepath.Join(root, DirMosaic)
	if !utils.DirExists(mosaicDir) {
		return
	}
	files, err := utils.ListFiles(mosaicDir, ExtTif)
	if err != nil {
		return
	}
	for _, f := range files {
		n, e := Parse(f)
		if e == nil && !n.Mosaic {
			e = fmt.Errorf("%w: %s", ErrMosaicShape, filepath.Base(f))
		}
		if e != nil {
			idx.Skipped = append(idx.Skipped, Skip{Path: f, Reason: e})
			continue
		}
		idx.Mosaics = append(idx.Mosaics, Entry{Folder: DirMosaic, Date: n.Date, Name: n, Path: f})
	}
	return
}

// All returns folder entries followed by mosaic entries.
func (idx *Index) All() []Entry {
	all := make([]Entry, 0, len(idx.Folders)+len(idx.Mosaics))
	all = append(all, idx.Folders...)
	return append(all, idx.Mosaics...)
}

// Group buckets entries by (date, layer). Keys keep first-seen order and
// members keep entry order, so the first listed member is deterministic.
func Group(entries []Entry) (keys []GroupKey, groups map[GroupKey][]Entry) {
	groups = map[GroupKey][]Entry{}
	for _, e := range entries {
		k := GroupKey{Date: e.Date, Layer: e.Name.Layer}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}
	return
}
