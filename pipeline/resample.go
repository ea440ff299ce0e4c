package pipeline

import (
	"context"
	"path/filepath"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

// Resample warps every raster of the effective input tree onto its area's
// reference grid into {processed}/{area}/{product}/resampled. With
// reclassification on, the raw mask layer of each folder and mosaic is also
// warped into resampled/cloudmask, since reclassified masks no longer tell
// cloud from nodata.
func (p *Pipeline) Resample(ctx context.Context) error {
	if !p.opts.Resample {
		p.scope(StageResample, "", "").diag("", "resampling disabled", nil)
		return nil
	}
	if p.deps.Warper == nil {
		return ErrNoWarper
	}
	var units []unit
	for _, a := range p.opts.Areas {
		target, err := p.target(a)
		if err != nil {
			p.scope(StageResample, a.Name, "").fail(a.Path, "cannot load reference grid", err)
			continue
		}
		for _, product := range p.opts.Products {
			units = append(units, p.resampleUnits(a.Name, product, target)...)
			if p.opts.Reclassify {
				units = append(units, p.cloudMaskUnits(a.Name, product, target)...)
			}
		}
	}
	return p.runUnits(ctx, StageResample, units)
}

// target loads an area's reference grid once. A configured CRS overrides the
// reference raster's own. Nodata defaults to the unified sentinel.
func (p *Pipeline) target(a Area) (t raster.Target, err error) {
	p.targetMu.Lock()
	defer p.targetMu.Unlock()
	if t, ok := p.targets[a.Name]; ok {
		return t, nil
	}
	ref, err := p.deps.Store.Read(a.Path)
	if err != nil {
		return
	}
	t = raster.Target{Grid: ref.Grid, DataType: ref.DataType, NoData: raster.UnifiedNoData}
	if a.CRS != "" {
		t.CRS = a.CRS
	}
	if ref.NoData != nil {
		t.NoData = *ref.NoData
	}
	p.targets[a.Name] = t
	return
}

func (p *Pipeline) resampleUnits(area, product string, target raster.Target) (units []unit) {
	s := p.scope(StageResample, area, product)
	in := p.resampleInput(area, product)
	idx, err := catalog.Scan(in)
	if err != nil {
		s.fail(in, "cannot scan input tree", err)
		return
	}
	for _, sk := range idx.Skipped {
		s.fail(sk.Path, "file name not in catalog grammar", sk.Reason)
	}
	outRoot := p.opts.Layout.StageDir(area, product, catalog.DirResampled)
	for _, e := range idx.All() {
		e := e
		out := filepath.Join(outRoot, e.Folder, e.Name.WithResampled(true).String())
		m := catalog.ResamplingFor(e.Name.Layer)
		units = append(units, func() {
			p.warpOne(s, e.Path, out, m, func(*raster.Raster) raster.Target { return target })
		})
	}
	return
}

// cloudMaskUnits warps the raw mask layer of the original tree, keeping its
// data type with the raw nodata code, nearest neighbour.
func (p *Pipeline) cloudMaskUnits(area, product string, target raster.Target) (units []unit) {
	layer, ok := catalog.MaskLayer(product)
	if !ok {
		return
	}
	s := p.scope(StageResample, area, product)
	in := p.opts.Layout.OriginalDir(area, product)
	idx, err := catalog.Scan(in)
	if err != nil {
		s.fail(in, "cannot scan acquisitions for cloud masks", err)
		return
	}
	outRoot := filepath.Join(p.opts.Layout.StageDir(area, product, catalog.DirResampled), catalog.DirCloudMask)
	for _, e := range idx.All() {
		if e.Name.Layer != layer || e.Name.Reclass {
			continue
		}
		e := e
		out := filepath.Join(outRoot, e.Folder, e.Name.WithResampled(true).String())
		units = append(units, func() {
			p.warpOne(s, e.Path, out, raster.Nearest, func(src *raster.Raster) raster.Target {
				return raster.Target{Grid: target.Grid, DataType: src.DataType, NoData: raster.RawNoData}
			})
		})
	}
	return
}

func (p *Pipeline) warpOne(s *scope, in, out string, m raster.Method, targetFor func(*raster.Raster) raster.Target) {
	src, err := p.deps.Store.Read(in)
	if err != nil {
		s.fail(in, "cannot read raster", err)
		return
	}
	warped, err := p.deps.Warper.Warp(src, targetFor(src), m)
	if err != nil {
		s.fail(in, "cannot resample "+m.String(), err)
		return
	}
	if err = utils.EnsureDir(filepath.Dir(out)); err == nil {
		err = p.deps.Store.Write(out, warped)
	}
	if err != nil {
		s.fail(out, "cannot write resampled raster", err)
		return
	}
	s.count(observability.OutcomeWritten)
}
