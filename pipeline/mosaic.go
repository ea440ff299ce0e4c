package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

var (
	ErrNoDate       = errors.New("no acquisition date in folder or file name")
	ErrUnknownLayer = errors.New("unknown layer")
)

// Mosaic merges, per area and product, every (date, layer) group of two or
// more acquisitions into {original}/{area}/{product}/mosaic. Single member
// groups are reported and left alone.
func (p *Pipeline) Mosaic(ctx context.Context) error {
	if !p.opts.Mosaic {
		p.scope(StageMosaic, "", "").diag("", "mosaicking disabled", nil)
		return nil
	}
	if p.deps.Merger == nil {
		return ErrNoMerger
	}
	var units []unit
	p.forEachProduct(func(a Area, product string) {
		units = append(units, p.mosaicUnits(a.Name, product)...)
	})
	return p.runUnits(ctx, StageMosaic, units)
}

func (p *Pipeline) mosaicUnits(area, product string) (units []unit) {
	s := p.scope(StageMosaic, area, product)
	idx, err := catalog.Scan(p.opts.Layout.OriginalDir(area, product))
	if err != nil {
		s.fail(p.opts.Layout.OriginalDir(area, product), "cannot scan acquisitions", err)
		return
	}
	for _, sk := range idx.Skipped {
		s.fail(sk.Path, "file name not in catalog grammar", sk.Reason)
	}
	var entries []catalog.Entry
	for _, e := range idx.Folders {
		switch {
		case e.Date == "":
			s.fail(e.Path, "skipping", ErrNoDate)
		case !catalog.IsKnownLayer(e.Name.Layer):
			s.fail(e.Path, "skipping", fmt.Errorf("%w: %s", ErrUnknownLayer, e.Name.Layer))
		default:
			entries = append(entries, e)
		}
	}
	outDir := p.opts.Layout.MosaicDir(area, product)
	keys, groups := catalog.Group(entries)
	for _, k := range keys {
		members := groups[k]
		if len(members) < 2 {
			s.note(members[0].Path, observability.OutcomeSkipped, "single acquisition for %s %s, not mosaicked", k.Date, k.Layer)
			continue
		}
		out := filepath.Join(outDir, catalog.MosaicName(product, k.Layer, k.Date).String())
		units = append(units, func() {
			p.mosaicGroup(s, out, members)
		})
	}
	return
}

func (p *Pipeline) mosaicGroup(s *scope, out string, members []catalog.Entry) {
	paths := make([]string, len(members))
	for i, m := range members {
		paths[i] = m.Path
	}
	merged, err := p.deps.Merger.Merge(paths)
	if err != nil {
		s.fail(out, "cannot merge group", err)
		return
	}
	if err = utils.EnsureDir(filepath.Dir(out)); err == nil {
		err = p.deps.Store.Write(out, merged)
	}
	if err != nil {
		s.fail(out, "cannot write mosaic", err)
		return
	}
	s.note(out, observability.OutcomeWritten, "mosaic of %d acquisitions", len(members))
}
