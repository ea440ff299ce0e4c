package pipeline

import (
	"context"
	"errors"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
)

var (
	ErrNoTileDeps = errors.New("tile matching needs a footprint reader and a tile index")
	ErrNoCRS      = errors.New("reference raster has no CRS and none is configured")
)

// MatchTiles finds the grid tiles intersecting each area's reference raster
// and persists them to the area's tile list. An empty intersection still
// writes an (empty) list. It returns the tile ids per area.
func (p *Pipeline) MatchTiles(ctx context.Context) (tiles map[string][]string, err error) {
	if p.deps.Footprints == nil || p.deps.Tiles == nil {
		err = ErrNoTileDeps
		return
	}
	tiles = map[string][]string{}
	units := make([]unit, 0, len(p.opts.Areas))
	results := make([][]string, len(p.opts.Areas))
	for i, a := range p.opts.Areas {
		i, a := i, a
		units = append(units, func() {
			results[i] = p.matchArea(a)
		})
	}
	if err = p.runUnits(ctx, StageTiles, units); err != nil {
		return
	}
	for i, a := range p.opts.Areas {
		if results[i] != nil {
			tiles[a.Name] = results[i]
		}
	}
	return
}

// matchArea returns nil when the area failed, an empty non-nil slice when it
// intersects no tile.
func (p *Pipeline) matchArea(a Area) (ids []string) {
	s := p.scope(StageTiles, a.Name, "")
	fp, err := p.deps.Footprints.Footprint(a.Path)
	if err != nil {
		s.fail(a.Path, "cannot read reference raster footprint", err)
		return
	}
	if fp.CRS == "" {
		if a.CRS == "" {
			s.fail(a.Path, "cannot place reference raster", ErrNoCRS)
			return
		}
		s.diag(a.Path, "reference raster has no CRS, using configured "+a.CRS, nil)
		fp.CRS = a.CRS
	}
	found, err := p.deps.Tiles.Intersecting(fp)
	if err != nil {
		s.fail(a.Path, "tile intersection failed", err)
		return
	}
	ids = append([]string{}, found...)
	out := p.opts.Layout.RelevantTilesFile(a.Name)
	if err = catalog.WriteTileList(out, ids); err != nil {
		s.fail(out, "cannot write tile list", err)
		return nil
	}
	if len(ids) == 0 {
		s.note(out, observability.OutcomeSkipped, "no intersecting tiles")
		return
	}
	s.note(out, observability.OutcomeWritten, "%d intersecting tiles: %v", len(ids), ids)
	return
}
