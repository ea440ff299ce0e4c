package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

var (
	ErrNoMaskLayer = errors.New("no cloud mask layer for product")
	ErrNoMask      = errors.New("cloud mask sibling not found")
)

// FilterClouds copies each resampled raster whose cloud fraction is at most
// the threshold into {processed}/{area}/{product}/cc_filtered, unchanged. The
// mosaic subtree is used when it holds anything, else the date folders.
func (p *Pipeline) FilterClouds(ctx context.Context) error {
	switch {
	case !p.opts.FilterCC:
		p.scope(StageFilter, "", "").diag("", "cloud filtering disabled (filter_cc is off)", nil)
		return nil
	case !p.opts.Resample:
		p.scope(StageFilter, "", "").diag("", "cloud filtering needs resampled rasters (crop_resample is off)", nil)
		return nil
	}
	var units []unit
	p.forEachProduct(func(a Area, product string) {
		units = append(units, p.filterUnits(a.Name, product)...)
	})
	return p.runUnits(ctx, StageFilter, units)
}

func (p *Pipeline) filterUnits(area, product string) (units []unit) {
	s := p.scope(StageFilter, area, product)
	maskLayer, ok := catalog.MaskLayer(product)
	if !ok {
		s.fail("", "skipping product", fmt.Errorf("%w: %s", ErrNoMaskLayer, product))
		return
	}
	in := p.opts.Layout.StageDir(area, product, catalog.DirResampled)
	idx, err := catalog.Scan(in, catalog.DirCloudMask)
	if err != nil {
		s.fail(in, "cannot scan resampled tree", err)
		return
	}
	candidates := idx.Mosaics
	if len(candidates) > 0 {
		s.diag(filepath.Join(in, catalog.DirMosaic), fmt.Sprintf("filtering %d mosaics", len(candidates)), nil)
	} else {
		candidates = idx.Folders
		s.diag(in, fmt.Sprintf("mosaic subtree empty, filtering %d rasters of date folders", len(candidates)), nil)
	}
	outRoot := p.opts.Layout.StageDir(area, product, catalog.DirFiltered)
	for _, e := range candidates {
		e := e
		units = append(units, func() {
			p.filterOne(s, e, maskLayer, filepath.Join(outRoot, e.Folder, e.Base()))
		})
	}
	return
}

// maskFor locates the mask sibling of a resampled raster and the convention
// its pixels follow. With reclassification on, the raw companion under
// cloudmask is preferred; the reclassified sibling is the fallback.
func (p *Pipeline) maskFor(e catalog.Entry, area, product, layer string) (path string, conv raster.Convention) {
	raw := e.Name.WithLayer(layer).WithReclass(false).String()
	reclassified := false
	switch {
	case !p.opts.Reclassify:
		path = filepath.Join(filepath.Dir(e.Path), raw)
	default:
		resampled := p.opts.Layout.StageDir(area, product, catalog.DirResampled)
		path = filepath.Join(resampled, catalog.DirCloudMask, e.Folder, raw)
		if !utils.FileExists(path) {
			sibling := e.Name.WithLayer(layer).WithReclass(catalog.ShouldReclassify(product, layer))
			path = filepath.Join(filepath.Dir(e.Path), sibling.String())
			reclassified = true
		}
	}
	conv = raster.ConventionFor(reclassified)
	return
}

func (p *Pipeline) filterOne(s *scope, e catalog.Entry, maskLayer, out string) {
	maskPath, conv := p.maskFor(e, s.area, s.product, maskLayer)
	if !utils.FileExists(maskPath) {
		s.fail(e.Path, "skipping", fmt.Errorf("%w: %s", ErrNoMask, maskPath))
		return
	}
	mask, err := p.deps.Store.Read(maskPath)
	if err != nil {
		s.fail(maskPath, "cannot read cloud mask", err)
		return
	}
	if len(mask.Bands) == 0 {
		s.fail(maskPath, "cannot read cloud mask", raster.ErrBandCount)
		return
	}
	fraction := raster.CloudFraction(mask.Bands[0], conv, mask.NoData)
	p.deps.Metrics.CloudFraction.Observe(fraction)
	if fraction > p.opts.Threshold {
		s.note(e.Path, observability.OutcomeDropped, "discarded: cloud fraction %.4f above threshold %.4f", fraction, p.opts.Threshold)
		return
	}
	if err = utils.EnsureDir(filepath.Dir(out)); err == nil {
		err = utils.CopyFile(e.Path, out)
	}
	if err != nil {
		s.fail(out, "cannot copy kept raster", err)
		return
	}
	s.note(e.Path, observability.OutcomeWritten, "kept: cloud fraction %.4f within threshold %.4f", fraction, p.opts.Threshold)
}
