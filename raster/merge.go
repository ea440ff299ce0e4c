package raster

import "math"

const resTolerance = 1e-9

// Mergeable checks that grids can be mosaicked: north-up, one CRS and one
// pixel size.
func Mergeable(grids []Grid) error {
	if len(grids) == 0 {
		return ErrEmptyInput
	}
	resX, resY := grids[0].Transform[1], grids[0].Transform[5]
	for _, g := range grids {
		if !g.NorthUp() {
			return ErrRotated
		}
		if !SameCRS(g.CRS, grids[0].CRS) {
			return ErrCRSMismatch
		}
		if math.Abs(g.Transform[1]-resX) > resTolerance*math.Abs(resX) ||
			math.Abs(g.Transform[5]-resY) > resTolerance*math.Abs(resY) {
			return ErrResMismatch
		}
	}
	return nil
}

// Merge builds one raster covering the union of the inputs' extents. Inputs
// must share CRS, pixel size and band count. Where inputs overlap the first
// listed valid pixel wins. Data type and nodata come from the first input;
// pixels no input covers hold its nodata value (0 when it has none).
func Merge(rs []*Raster) (out *Raster, err error) {
	if len(rs) == 0 {
		err = ErrEmptyInput
		return
	}
	first := rs[0]
	resX, resY := first.Transform[1], first.Transform[5]
	grids := make([]Grid, len(rs))
	for i, r := range rs {
		grids[i] = r.Grid
	}
	if err = Mergeable(grids); err != nil {
		return
	}
	bound := first.Bounds()
	for _, r := range rs {
		if len(r.Bands) != len(first.Bands) {
			err = ErrBandCount
			return
		}
		if err = r.Validate(); err != nil {
			return
		}
		bound = bound.Union(r.Bounds())
	}
	pxW, pxH := math.Abs(resX), math.Abs(resY)
	g := Grid{
		CRS:    first.CRS,
		Width:  int(math.Round((bound.Max[0] - bound.Min[0]) / pxW)),
		Height: int(math.Round((bound.Max[1] - bound.Min[1]) / pxH)),
	}
	g.Transform = [6]float64{bound.Min[0], resX, 0, bound.Max[1], 0, resY}
	if resX < 0 {
		g.Transform[0] = bound.Max[0]
	}
	if resY > 0 {
		g.Transform[3] = bound.Min[1]
	}
	out = New(g, first.DataType, first.NoData, len(first.Bands))
	filled := make([][]bool, len(out.Bands))
	for b := range filled {
		filled[b] = make([]bool, g.Size())
	}
	for _, r := range rs {
		offX := int(math.Round((r.Transform[0] - g.Transform[0]) / resX))
		offY := int(math.Round((r.Transform[3] - g.Transform[3]) / resY))
		for b, band := range r.Bands {
			dst, done := out.Bands[b], filled[b]
			for row := 0; row < r.Height; row++ {
				oy := row + offY
				if oy < 0 || oy >= g.Height {
					continue
				}
				for col := 0; col < r.Width; col++ {
					ox := col + offX
					if ox < 0 || ox >= g.Width {
						continue
					}
					v := band[row*r.Width+col]
					i := oy*g.Width + ox
					if done[i] || r.IsNoData(v) {
						continue
					}
					dst[i] = Cast(v, first.DataType)
					done[i] = true
				}
			}
		}
	}
	return
}
