package raster

const (
	RawCloud      = 205
	RawNoData     = 255
	UnifiedNoData = -9999
)

// Convention names the sentinels in force for a mask layer.
type Convention struct {
	NoData float64
	Cloud  float64
}

var (
	// RawConvention is the vendor encoding before reclassification.
	RawConvention = Convention{NoData: RawNoData, Cloud: RawCloud}
	// UnifiedConvention is the encoding after reclassification. Cloud and
	// nodata share the sentinel, so a unified mask cannot report cloud cover.
	UnifiedConvention = Convention{NoData: UnifiedNoData, Cloud: UnifiedNoData}
)

// ConventionFor returns the convention for masks read after (true) or before (false) reclassification.
func ConventionFor(reclassified bool) Convention {
	if reclassified {
		return UnifiedConvention
	}
	return RawConvention
}

// Reclassify maps band 1 to float32 with the cloud/shadow and nodata codes
// collapsed to UnifiedNoData. Other values pass through untouched, including
// genuine data equal to a sentinel.
func Reclassify(r *Raster) *Raster {
	out := &Raster{
		Grid:     r.Grid,
		DataType: Float32,
		NoData:   NoDataValue(UnifiedNoData),
		Bands:    make([][]float64, 1),
	}
	if len(r.Bands) == 0 {
		out.Bands = nil
		return out
	}
	src := r.Bands[0]
	dst := make([]float64, len(src))
	for i, v := range src {
		v = Cast(v, Float32)
		if v == RawCloud || v == RawNoData {
			v = UnifiedNoData
		}
		dst[i] = v
	}
	out.Bands[0] = dst
	return out
}

// CloudFraction is the share of valid mask pixels flagged as cloud. A pixel is
// valid when it differs from the convention's nodata sentinel and from the
// file's declared nodata (if any). It is 0 when no pixel is valid.
func CloudFraction(mask []float64, conv Convention, declared *float64) (fraction float64) {
	var valid, cloud int
	for _, v := range mask {
		if v == conv.NoData || (declared != nil && v == *declared) {
			continue
		}
		valid++
		if v == conv.Cloud {
			cloud++
		}
	}
	if valid == 0 {
		return
	}
	fraction = float64(cloud) / float64(valid)
	return
}
