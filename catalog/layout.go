package catalog

import (
	"fmt"
	"path/filepath"
)

// Stage subtree names.
const (
	DirMosaic       = "mosaic"
	DirReclassified = "reclassified"
	DirResampled    = "resampled"
	DirCloudMask    = "cloudmask"
	DirFiltered     = "cc_filtered"

	relevantTilesTemplate = "relevant_tiles_%s.txt"
)

// Layout resolves catalog directories:
//
//	{Original}/{area}/{product}/{date-folder}/*.tif
//	{Original}/{area}/{product}/mosaic/*.tif
//	{Processed}/{area}/{product}/{stage}/{date-folder|mosaic}/*.tif
type Layout struct {
	Original  string
	Processed string
	TileDir   string
}

func (l Layout) OriginalDir(area, product string) string {
	return filepath.Join(l.Original, area, product)
}

func (l Layout) MosaicDir(area, product string) string {
	return filepath.Join(l.OriginalDir(area, product), DirMosaic)
}

// ProcessedDir holds every stage subtree of one area and product.
func (l Layout) ProcessedDir(area, product string) string {
	return filepath.Join(l.Processed, area, product)
}

func (l Layout) StageDir(area, product, stage string) string {
	return filepath.Join(l.ProcessedDir(area, product), stage)
}

// RelevantTilesFile is the tile list consumed by the download client for one area.
func (l Layout) RelevantTilesFile(area string) string {
	return filepath.Join(l.TileDir, fmt.Sprintf(relevantTilesTemplate, area))
}
