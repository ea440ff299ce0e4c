package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

const utm32 = "EPSG:32632"

func grid(x0, y0, px float64, w, h int) Grid {
	return Grid{CRS: utm32, Transform: [6]float64{x0, px, 0, y0, 0, -px}, Width: w, Height: h}
}

func byteRaster(g Grid, nodata float64, vals ...float64) *Raster {
	return &Raster{Grid: g, DataType: Byte, NoData: NoDataValue(nodata), Bands: [][]float64{vals}}
}

func TestReclassify_Values(t *testing.T) {
	in := byteRaster(grid(0, 4, 1, 4, 1), 255, 0, 150, 205, 255)
	out := Reclassify(in)

	assert.Equal(t, Float32, out.DataType)
	require.NotNil(t, out.NoData)
	assert.Equal(t, float64(UnifiedNoData), *out.NoData)
	assert.Equal(t, []float64{0, 150, -9999, -9999}, out.Bands[0])
	// input untouched
	assert.Equal(t, []float64{0, 150, 205, 255}, in.Bands[0])
	assert.Equal(t, in.Grid, out.Grid)
}

func TestReclassify_OnlyFirstBand(t *testing.T) {
	in := byteRaster(grid(0, 2, 1, 2, 1), 255, 205, 1)
	in.Bands = append(in.Bands, []float64{7, 8})
	out := Reclassify(in)
	require.Len(t, out.Bands, 1)
	assert.Equal(t, []float64{-9999, 1}, out.Bands[0])
}

func TestCloudFraction_Raw(t *testing.T) {
	mask := []float64{205, 205, 0, 100, 255, 255}
	f := CloudFraction(mask, RawConvention, nil)
	assert.InDelta(t, 0.5, f, 1e-12)
}

func TestCloudFraction_AllNoData(t *testing.T) {
	assert.Zero(t, CloudFraction([]float64{255, 255, 255}, RawConvention, nil))
	assert.Zero(t, CloudFraction([]float64{-9999, -9999}, UnifiedConvention, nil))
	assert.Zero(t, CloudFraction(nil, RawConvention, nil))
}

func TestCloudFraction_DeclaredNoDataExcluded(t *testing.T) {
	mask := []float64{205, 0, -9999, -9999}
	f := CloudFraction(mask, RawConvention, NoDataValue(-9999))
	assert.InDelta(t, 0.5, f, 1e-12)
}

func TestCloudFraction_Bounds(t *testing.T) {
	masks := [][]float64{
		{205, 205, 205},
		{0, 1, 2},
		{205, 255, 0, 205, 17},
		{-9999, 0, 205},
	}
	for _, m := range masks {
		for _, conv := range []Convention{RawConvention, UnifiedConvention} {
			f := CloudFraction(m, conv, nil)
			assert.GreaterOrEqual(t, f, 0.0)
			assert.LessOrEqual(t, f, 1.0)
		}
	}
}

func TestMerge_FirstWinsAndUnion(t *testing.T) {
	// a covers x 0..2, b covers x 1..3, same row
	a := byteRaster(grid(0, 1, 1, 2, 1), 255, 1, 2)
	b := byteRaster(grid(1, 1, 1, 2, 1), 255, 9, 3)

	out, err := Merge([]*Raster{a, b})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Width)
	assert.Equal(t, 1, out.Height)
	assert.Equal(t, [6]float64{0, 1, 0, 1, 0, -1}, out.Transform)
	assert.Equal(t, []float64{1, 2, 3}, out.Bands[0])
	assert.Equal(t, Byte, out.DataType)
	assert.Equal(t, 255.0, *out.NoData)
}

func TestMerge_NoDataDoesNotWin(t *testing.T) {
	a := byteRaster(grid(0, 1, 1, 2, 1), 255, 255, 2)
	b := byteRaster(grid(0, 1, 1, 2, 1), 255, 7, 8)

	out, err := Merge([]*Raster{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 2}, out.Bands[0])
}

func TestMerge_GapFilledWithNoData(t *testing.T) {
	a := byteRaster(grid(0, 1, 1, 1, 1), 255, 4)
	b := byteRaster(grid(2, 1, 1, 1, 1), 255, 5)

	out, err := Merge([]*Raster{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 255, 5}, out.Bands[0])
}

func TestMerge_Rejects(t *testing.T) {
	_, err := Merge(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	a := byteRaster(grid(0, 1, 1, 1, 1), 255, 4)
	b := byteRaster(grid(0, 1, 1, 1, 1), 255, 4)
	b.CRS = "EPSG:32633"
	_, err = Merge([]*Raster{a, b})
	assert.ErrorIs(t, err, ErrCRSMismatch)

	c := byteRaster(grid(0, 1, 2, 1, 1), 255, 4)
	_, err = Merge([]*Raster{a, c})
	assert.ErrorIs(t, err, ErrResMismatch)
}

func TestMergeable(t *testing.T) {
	assert.ErrorIs(t, Mergeable(nil), ErrEmptyInput)
	assert.NoError(t, Mergeable([]Grid{grid(0, 1, 10, 2, 2), grid(20, 1, 10, 3, 1)}))

	rotated := grid(0, 1, 10, 1, 1)
	rotated.Transform[2] = 0.5
	assert.ErrorIs(t, Mergeable([]Grid{grid(0, 1, 10, 1, 1), rotated}), ErrRotated)
}

func TestConventionFor(t *testing.T) {
	assert.Equal(t, RawConvention, ConventionFor(false))
	assert.Equal(t, UnifiedConvention, ConventionFor(true))
	// a unified mask never reports cloud
	assert.Zero(t, CloudFraction([]float64{-9999, 40, 60}, ConventionFor(true), nil))
}

func TestResample_GridConformance(t *testing.T) {
	src := byteRaster(grid(0, 4, 2, 2, 2), 255, 1, 2, 3, 4)
	target := Target{Grid: grid(1, 3, 0.5, 5, 3), DataType: Float32, NoData: -9999}

	for _, m := range []Method{Nearest, Bilinear} {
		out, err := Resample(src, target, m)
		require.NoError(t, err)
		assert.Equal(t, target.Grid, out.Grid)
		assert.Equal(t, target.DataType, out.DataType)
		require.NotNil(t, out.NoData)
		assert.Equal(t, target.NoData, *out.NoData)
		require.Len(t, out.Bands, 1)
		assert.Len(t, out.Bands[0], target.Size())
	}
}

func TestResample_NearestKeepsClasses(t *testing.T) {
	src := byteRaster(grid(0, 2, 1, 2, 2), 255, 10, 20, 30, 40)
	target := Target{Grid: grid(0, 2, 0.5, 4, 4), DataType: Byte, NoData: 255}

	out, err := Resample(src, target, Nearest)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		10, 10, 20, 20,
		10, 10, 20, 20,
		30, 30, 40, 40,
		30, 30, 40, 40,
	}, out.Bands[0])
}

func TestResample_BilinearSkipsNoData(t *testing.T) {
	src := byteRaster(grid(0, 1, 1, 2, 1), 255, 10, 255)
	// one target pixel centred on the shared edge
	target := Target{Grid: grid(0.5, 1, 1, 1, 1), DataType: Float64, NoData: -1}

	out, err := Resample(src, target, Bilinear)
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, out.Bands[0])

	src.Bands[0] = []float64{10, 20}
	out, err = Resample(src, target, Bilinear)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox(out.Bands[0], []float64{15}, 1e-9))
}

func TestResample_OutsideSourceIsNoData(t *testing.T) {
	src := byteRaster(grid(0, 1, 1, 1, 1), 255, 3)
	target := Target{Grid: grid(5, 1, 1, 2, 1), DataType: Float32, NoData: -9999}

	out, err := Resample(src, target, Nearest)
	require.NoError(t, err)
	assert.Equal(t, []float64{-9999, -9999}, out.Bands[0])
}

func TestResample_CRSMismatch(t *testing.T) {
	src := byteRaster(grid(0, 1, 1, 1, 1), 255, 3)
	target := Target{Grid: grid(0, 1, 1, 1, 1), DataType: Byte, NoData: 255}
	target.CRS = "EPSG:4326"
	_, err := GridWarper{}.Warp(src, target, Nearest)
	assert.ErrorIs(t, err, ErrCRSMismatch)
}

func TestCast(t *testing.T) {
	assert.Equal(t, 255.0, Cast(300, Byte))
	assert.Equal(t, 0.0, Cast(-3, Byte))
	assert.Equal(t, 2.0, Cast(1.6, Int16))
	assert.Equal(t, float64(float32(0.1)), Cast(0.1, Float32))
	assert.Equal(t, 0.1, Cast(0.1, Float64))
}
