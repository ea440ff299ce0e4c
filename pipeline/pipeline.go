// Package pipeline runs the catalog stages: tile matching, mosaicking,
// reclassification, resampling and cloud filtering. Stages talk only through
// the catalog directory tree; raster I/O, warping and tile geometry are
// injected so the stage logic stays independent of GDAL.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/config"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"
)

// Store reads and writes whole rasters by path.
type Store interface {
	Read(path string) (*raster.Raster, error)
	Write(path string, r *raster.Raster) error
}

// Warper resamples a raster onto a target grid.
type Warper interface {
	Warp(src *raster.Raster, dst raster.Target, m raster.Method) (*raster.Raster, error)
}

// Merger mosaics the rasters at paths into one covering their union. Members
// must share CRS, pixel size and band count; where they overlap the first
// listed valid pixel wins.
type Merger interface {
	Merge(paths []string) (*raster.Raster, error)
}

// FootprintReader returns the bounding box of a raster file without reading its pixels.
type FootprintReader interface {
	Footprint(path string) (raster.Footprint, error)
}

// TileIndex answers which grid tiles intersect a footprint, in the grid's native order.
type TileIndex interface {
	Intersecting(fp raster.Footprint) ([]string, error)
}

// Area is one reference area: its identifier, reference raster and configured
// CRS. The configured CRS overrides the reference grid's own when resampling
// and stands in for a missing one when matching tiles.
type Area struct {
	Name string
	Path string
	CRS  string
}

// Options is the pipeline configuration threaded through every stage.
type Options struct {
	Layout     catalog.Layout
	Areas      []Area
	Products   []string
	Mosaic     bool
	Reclassify bool
	Resample   bool
	FilterCC   bool
	Threshold  float64
	Workers    int
}

// OptionsFromConfig maps a validated configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	o := Options{
		Layout:     cfg.Layout(),
		Products:   cfg.Products,
		Mosaic:     cfg.MosaicOutput,
		Reclassify: cfg.Reclassify,
		Resample:   cfg.CropResample,
		FilterCC:   cfg.FilterCC,
		Threshold:  cfg.CCThreshold,
		Workers:    cfg.Workers,
	}
	for _, r := range cfg.ReferenceRasters {
		o.Areas = append(o.Areas, Area{Name: r.Area(), Path: cfg.ReferencePath(r), CRS: r.CRS})
	}
	return o
}

var (
	ErrNoMerger = errors.New("mosaicking needs a merger")
	ErrNoWarper = errors.New("resampling needs a warper")
)

// Deps are the collaborators the stages depend on. Store is always needed;
// Merger only by Mosaic, Warper only by Resample, Footprints and Tiles only
// by MatchTiles.
type Deps struct {
	Store      Store
	Merger     Merger
	Warper     Warper
	Footprints FootprintReader
	Tiles      TileIndex
	Metrics    *observability.Metrics
	Clock      clockwork.Clock
}

// Pipeline holds the options and collaborators of one run plus its report.
type Pipeline struct {
	opts Options
	deps Deps

	report *Report

	targetMu sync.Mutex
	targets  map[string]raster.Target
}

func New(opts Options, deps Deps) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetricsForTesting()
	}
	return &Pipeline{
		opts:    opts,
		deps:    deps,
		report:  &Report{},
		targets: map[string]raster.Target{},
	}
}

func (p *Pipeline) Report() *Report {
	return p.report
}

// Skip records an acquisition step that could not run as a failed unit of
// stage. Later stages go on over whatever the catalog already holds.
func (p *Pipeline) Skip(stage, path, msg string, err error) {
	p.scope(stage, "", "").fail(path, msg, err)
}

// Process runs mosaicking, reclassification, resampling and cloud filtering in
// order. Each stage drains completely before the next one starts, because
// later stages discover their inputs by scanning what earlier ones wrote.
func (p *Pipeline) Process(ctx context.Context) (err error) {
	for _, stage := range []func(context.Context) error{p.Mosaic, p.Reclassify, p.Resample, p.FilterClouds} {
		if err = stage(ctx); err != nil {
			return
		}
	}
	return
}

// resampleInput is where the resampler reads from: the reclassified tree
// when reclassification is on, else the original acquisitions.
func (p *Pipeline) resampleInput(area, product string) string {
	if p.opts.Reclassify {
		return p.opts.Layout.StageDir(area, product, catalog.DirReclassified)
	}
	return p.opts.Layout.OriginalDir(area, product)
}

// forEachProduct visits every (area, product) pair in configuration order.
func (p *Pipeline) forEachProduct(fn func(area Area, product string)) {
	for _, a := range p.opts.Areas {
		for _, product := range p.opts.Products {
			fn(a, product)
		}
	}
}
