package pipeline

import (
	"context"
	"path/filepath"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

// Reclassify mirrors each product's date folders and mosaics into
// {processed}/{area}/{product}/reclassified. Whitelisted layers get the
// unified sentinel encoding and the reclass marker; every other raster is
// copied byte for byte under its own name.
func (p *Pipeline) Reclassify(ctx context.Context) error {
	if !p.opts.Reclassify {
		p.scope(StageReclassify, "", "").diag("", "reclassification disabled", nil)
		return nil
	}
	var units []unit
	p.forEachProduct(func(a Area, product string) {
		units = append(units, p.reclassifyUnits(a.Name, product)...)
	})
	return p.runUnits(ctx, StageReclassify, units)
}

func (p *Pipeline) reclassifyUnits(area, product string) (units []unit) {
	s := p.scope(StageReclassify, area, product)
	in := p.opts.Layout.OriginalDir(area, product)
	idx, err := catalog.Scan(in)
	if err != nil {
		s.fail(in, "cannot scan acquisitions", err)
		return
	}
	for _, sk := range idx.Skipped {
		s.fail(sk.Path, "file name not in catalog grammar", sk.Reason)
	}
	outRoot := p.opts.Layout.StageDir(area, product, catalog.DirReclassified)
	for _, e := range idx.All() {
		e := e
		outDir := filepath.Join(outRoot, e.Folder)
		if catalog.ShouldReclassify(product, e.Name.Layer) && !e.Name.Reclass {
			out := filepath.Join(outDir, e.Name.WithReclass(true).String())
			units = append(units, func() { p.reclassifyOne(s, e.Path, out) })
			continue
		}
		out := filepath.Join(outDir, e.Base())
		units = append(units, func() { copyUnit(s, e.Path, out) })
	}
	return
}

func (p *Pipeline) reclassifyOne(s *scope, in, out string) {
	r, err := p.deps.Store.Read(in)
	if err != nil {
		s.fail(in, "cannot read raster", err)
		return
	}
	if err = utils.EnsureDir(filepath.Dir(out)); err == nil {
		err = p.deps.Store.Write(out, raster.Reclassify(r))
	}
	if err != nil {
		s.fail(out, "cannot write reclassified raster", err)
		return
	}
	s.count(observability.OutcomeWritten)
}

// copyUnit copies a raster file unchanged.
func copyUnit(s *scope, in, out string) {
	err := utils.EnsureDir(filepath.Dir(out))
	if err == nil {
		err = utils.CopyFile(in, out)
	}
	if err != nil {
		s.fail(out, "cannot copy raster", err)
		return
	}
	s.count(observability.OutcomeWritten)
}
