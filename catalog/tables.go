package catalog

import "github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"

const (
	ProductFSC  = "FSC"
	ProductPSA  = "PSA"
	ProductSWS  = "SWS"
	ProductWDS  = "WDS"
	ProductGFSC = "GFSC"
)

var (
	// Products lists the product types the download client accepts.
	Products = []string{ProductFSC, ProductPSA, ProductSWS, ProductWDS, ProductGFSC}

	// KnownLayers are the layer tokens grouped for mosaicking.
	KnownLayers = []string{"CLD", "FSCOG", "FSCTOC", "NDSI", "QCFLAGS", "QCOG", "QCTOC", "PSA", "QC", "SSC", "QCSSC", "WSM", "QCWSM", "AT", "GF"}

	// CategoricalLayers hold class codes and are resampled nearest-neighbour;
	// every other layer is continuous and resampled bilinearly.
	CategoricalLayers = map[string]bool{
		"CLD": true, "QCFLAGS": true, "QCOG": true, "QCTOC": true, "QC": true,
		"SSC": true, "QCSSC": true, "WSM": true, "QCWSM": true,
	}

	// ReclassLayers is the per-product whitelist of layers whose sentinels are unified.
	ReclassLayers = map[string][]string{
		ProductFSC:  {"FSCTOC", "FSCOG", "NDSI"},
		ProductPSA:  {"PSA"},
		ProductWDS:  {"SSC"},
		ProductSWS:  {"WSM"},
		ProductGFSC: {"GF"},
	}

	// MaskLayers names the layer carrying the cloud/shadow flag for each product.
	MaskLayers = map[string]string{
		ProductFSC:  "FSCOG",
		ProductPSA:  "PSA",
		ProductWDS:  "SSC",
		ProductSWS:  "WSM",
		ProductGFSC: "GF",
	}
)

func IsProduct(p string) bool {
	for _, v := range Products {
		if v == p {
			return true
		}
	}
	return false
}

func IsKnownLayer(layer string) bool {
	layer = upper(layer)
	for _, v := range KnownLayers {
		if v == layer {
			return true
		}
	}
	return false
}

// ShouldReclassify reports whether layer is on product's reclassification whitelist.
func ShouldReclassify(product, layer string) bool {
	layer = upper(layer)
	for _, v := range ReclassLayers[upper(product)] {
		if v == layer {
			return true
		}
	}
	return false
}

// ResamplingFor picks the resampling method of a layer.
func ResamplingFor(layer string) raster.Method {
	if CategoricalLayers[upper(layer)] {
		return raster.Nearest
	}
	return raster.Bilinear
}

// MaskLayer returns the cloud mask layer of product.
func MaskLayer(product string) (layer string, ok bool) {
	layer, ok = MaskLayers[upper(product)]
	return
}
