// Package raster holds the in-memory raster asset passed between pipeline
// stages and the whole-array operations the stages apply to it.
package raster

import (
	"errors"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// DataType uses GDAL data type names so values round-trip through the toolbox unchanged.
type DataType string

const (
	Byte    DataType = "Byte"
	UInt16  DataType = "UInt16"
	Int16   DataType = "Int16"
	UInt32  DataType = "UInt32"
	Int32   DataType = "Int32"
	Float32 DataType = "Float32"
	Float64 DataType = "Float64"
)

var (
	ErrEmptyInput    = errors.New("no rasters given")
	ErrCRSMismatch   = errors.New("rasters do not share a CRS")
	ErrResMismatch   = errors.New("rasters do not share a pixel size")
	ErrRotated       = errors.New("rotated geotransforms are not supported")
	ErrBandCount     = errors.New("band count mismatch")
	ErrBandSize      = errors.New("band length does not match grid size")
	ErrUnknownMethod = errors.New("unknown resampling method")
)

// Grid is the pixel grid of a raster. Transform follows the GDAL geotransform
// layout: origin x, pixel width, row rotation, origin y, column rotation, pixel height.
type Grid struct {
	CRS       string
	Transform [6]float64
	Width     int
	Height    int
}

// Raster is a whole-file raster held in memory, one float64 slice per band in row-major order.
type Raster struct {
	Grid
	DataType DataType
	NoData   *float64
	Bands    [][]float64
}

// Target is the grid plus encoding every resampled output must take verbatim.
type Target struct {
	Grid
	DataType DataType
	NoData   float64
}

// Footprint is a bounding box tagged with the CRS it is expressed in. An empty CRS means unknown.
type Footprint struct {
	Bounds orb.Bound
	CRS    string
}

func NoDataValue(v float64) *float64 {
	return &v
}

func (g Grid) Size() int {
	return g.Width * g.Height
}

func (g Grid) NorthUp() bool {
	return g.Transform[2] == 0 && g.Transform[4] == 0
}

// Bounds returns the grid extent for a north-up transform.
func (g Grid) Bounds() orb.Bound {
	x0, y0 := g.Transform[0], g.Transform[3]
	x1 := x0 + float64(g.Width)*g.Transform[1]
	y1 := y0 + float64(g.Height)*g.Transform[5]
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// SameCRS compares two CRS definitions textually, ignoring case and surrounding blanks.
func SameCRS(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func New(g Grid, dt DataType, noData *float64, bands int) *Raster {
	r := &Raster{Grid: g, DataType: dt, Bands: make([][]float64, bands)}
	fill := 0.0
	if noData != nil {
		r.NoData = NoDataValue(*noData)
		fill = *noData
	}
	for i := range r.Bands {
		b := make([]float64, g.Size())
		if fill != 0 {
			for j := range b {
				b[j] = fill
			}
		}
		r.Bands[i] = b
	}
	return r
}

func (r *Raster) Clone() *Raster {
	c := &Raster{Grid: r.Grid, DataType: r.DataType, Bands: make([][]float64, len(r.Bands))}
	if r.NoData != nil {
		c.NoData = NoDataValue(*r.NoData)
	}
	for i, b := range r.Bands {
		c.Bands[i] = append([]float64(nil), b...)
	}
	return c
}

// Validate checks every band matches the grid size.
func (r *Raster) Validate() error {
	for _, b := range r.Bands {
		if len(b) != r.Size() {
			return ErrBandSize
		}
	}
	return nil
}

// IsNoData reports whether v is the declared nodata value (or NaN).
func (r *Raster) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return r.NoData != nil && v == *r.NoData
}

// Cast converts v to what a dt-typed band would store: rounded and clamped
// for integer types, single precision for Float32.
func Cast(v float64, dt DataType) float64 {
	if math.IsNaN(v) {
		return v
	}
	clamp := func(lo, hi float64) float64 {
		v = math.Round(v)
		return math.Max(lo, math.Min(hi, v))
	}
	switch dt {
	case Byte:
		return clamp(0, math.MaxUint8)
	case UInt16:
		return clamp(0, math.MaxUint16)
	case Int16:
		return clamp(math.MinInt16, math.MaxInt16)
	case UInt32:
		return clamp(0, math.MaxUint32)
	case Int32:
		return clamp(math.MinInt32, math.MaxInt32)
	case Float32:
		return float64(float32(v))
	}
	return v
}
