package raster

import "math"

// Method selects how source pixels are sampled onto the target grid.
type Method int

const (
	Nearest Method = iota
	Bilinear
)

// String returns the GDAL -r name of the method.
func (m Method) String() string {
	switch m {
	case Nearest:
		return "near"
	case Bilinear:
		return "bilinear"
	}
	return "unknown"
}

// GridWarper resamples between north-up grids sharing one CRS without
// leaving the process. Cross-CRS work needs the GDAL toolbox.
type GridWarper struct{}

func (GridWarper) Warp(src *Raster, dst Target, m Method) (*Raster, error) {
	return Resample(src, dst, m)
}

// Resample samples every band of src at the pixel centres of dst. The output
// takes the grid, data type and nodata of dst verbatim. Source nodata pixels
// and pixels outside the source extent become dst nodata; bilinear weights
// are renormalised over the valid neighbours.
func Resample(src *Raster, dst Target, m Method) (out *Raster, err error) {
	if m != Nearest && m != Bilinear {
		err = ErrUnknownMethod
		return
	}
	if !SameCRS(src.CRS, dst.CRS) {
		err = ErrCRSMismatch
		return
	}
	if !src.NorthUp() || !dst.NorthUp() {
		err = ErrRotated
		return
	}
	if err = src.Validate(); err != nil {
		return
	}
	out = New(dst.Grid, dst.DataType, NoDataValue(dst.NoData), len(src.Bands))
	nodata := Cast(dst.NoData, dst.DataType)
	st, dt := src.Transform, dst.Transform
	for b, band := range src.Bands {
		o := out.Bands[b]
		for row := 0; row < dst.Height; row++ {
			y := dt[3] + (float64(row)+0.5)*dt[5]
			fr := (y - st[3]) / st[5]
			for col := 0; col < dst.Width; col++ {
				x := dt[0] + (float64(col)+0.5)*dt[1]
				fc := (x - st[0]) / st[1]
				v, ok := sample(src, band, fc, fr, m)
				if !ok {
					o[row*dst.Width+col] = nodata
					continue
				}
				o[row*dst.Width+col] = Cast(v, dst.DataType)
			}
		}
	}
	return
}

func sample(src *Raster, band []float64, fc, fr float64, m Method) (v float64, ok bool) {
	c, r := int(math.Floor(fc)), int(math.Floor(fr))
	if c < 0 || r < 0 || c >= src.Width || r >= src.Height {
		return
	}
	if m == Nearest {
		v = band[r*src.Width+c]
		ok = !src.IsNoData(v)
		return
	}
	u, w := fc-0.5, fr-0.5
	c0, r0 := int(math.Floor(u)), int(math.Floor(w))
	dx, dy := u-float64(c0), w-float64(r0)
	var sum, wsum float64
	for _, n := range [4]struct {
		c, r int
		w    float64
	}{
		{c0, r0, (1 - dx) * (1 - dy)},
		{c0 + 1, r0, dx * (1 - dy)},
		{c0, r0 + 1, (1 - dx) * dy},
		{c0 + 1, r0 + 1, dx * dy},
	} {
		if n.w == 0 || n.c < 0 || n.r < 0 || n.c >= src.Width || n.r >= src.Height {
			continue
		}
		s := band[n.r*src.Width+n.c]
		if src.IsNoData(s) {
			continue
		}
		sum += s * n.w
		wsum += n.w
	}
	if wsum == 0 {
		return
	}
	v, ok = sum/wsum, true
	return
}
