// Package catalog maps catalog paths to raster identity and back. It never
// opens a raster: area, product, date and layer all come from names.
//
// Plain acquisition files are named
//
//	{stem}_{LAYER}[_reclass][_resampled].tif
//
// where the stem carries the acquisition date as an 8 digit token followed by
// a time marker (e.g. FSC_20230701T102559_S2B_T32TPS_V102_1). Mosaics are
// named
//
//	mosaic_{PRODUCT}_{LAYER}_{YYYYMMDD}[_reclass][_resampled].tif
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ExtTif          = ".tif"
	MosaicPrefix    = "mosaic"
	ReclassMarker   = "reclass"
	ResampledMarker = "resampled"

	sep = "_"
)

var (
	ErrNotRaster   = errors.New("not a .tif file")
	ErrNoLayer     = errors.New("no layer token in file name")
	ErrMosaicShape = errors.New("unexpected mosaic file name shape")

	dateRe = regexp.MustCompile(`_(\d{8})(?:T|-)`)
	ymdRe  = regexp.MustCompile(`^\d{8}$`)
)

// Name is the identity encoded in a raster file name.
type Name struct {
	Mosaic    bool
	Stem      string // plain names only
	Product   string // mosaic names only
	Layer     string
	Date      string // mosaic names only; plain names keep it inside Stem
	Reclass   bool
	Resampled bool
}

func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// Parse decodes a file name (or path) into its identity.
func Parse(filename string) (n Name, err error) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ExtTif) {
		err = fmt.Errorf("%w: %s", ErrNotRaster, base)
		return
	}
	tokens := strings.Split(strings.TrimSuffix(base, ext), sep)
	if last := len(tokens) - 1; last > 0 && strings.EqualFold(tokens[last], ResampledMarker) {
		n.Resampled = true
		tokens = tokens[:last]
	}
	if last := len(tokens) - 1; last > 0 && strings.EqualFold(tokens[last], ReclassMarker) {
		n.Reclass = true
		tokens = tokens[:last]
	}
	if strings.EqualFold(tokens[0], MosaicPrefix) {
		// tolerate the marker written between product and layer
		if len(tokens) == 5 && strings.EqualFold(tokens[2], ReclassMarker) {
			n.Reclass = true
			tokens = append(tokens[:2], tokens[3:]...)
		}
		if len(tokens) != 4 || !ymdRe.MatchString(tokens[3]) {
			err = fmt.Errorf("%w: %s", ErrMosaicShape, base)
			return
		}
		n.Mosaic = true
		n.Product = upper(tokens[1])
		n.Layer = upper(tokens[2])
		n.Date = tokens[3]
		return
	}
	if len(tokens) < 2 || tokens[len(tokens)-1] == "" {
		err = fmt.Errorf("%w: %s", ErrNoLayer, base)
		return
	}
	n.Stem = strings.Join(tokens[:len(tokens)-1], sep)
	n.Layer = upper(tokens[len(tokens)-1])
	return
}

// String renders the file name (base name only).
func (n Name) String() string {
	var b strings.Builder
	if n.Mosaic {
		b.WriteString(MosaicPrefix + sep + n.Product + sep + n.Layer + sep + n.Date)
	} else {
		b.WriteString(n.Stem + sep + n.Layer)
	}
	if n.Reclass {
		b.WriteString(sep + ReclassMarker)
	}
	if n.Resampled {
		b.WriteString(sep + ResampledMarker)
	}
	b.WriteString(ExtTif)
	return b.String()
}

func (n Name) WithLayer(layer string) Name {
	n.Layer = upper(layer)
	return n
}

func (n Name) WithReclass(v bool) Name {
	n.Reclass = v
	return n
}

func (n Name) WithResampled(v bool) Name {
	n.Resampled = v
	return n
}

// MosaicName is the name of the mosaic of one (product, layer, date) group.
func MosaicName(product, layer, date string) Name {
	return Name{Mosaic: true, Product: upper(product), Layer: upper(layer), Date: date}
}

// LayerOf returns the layer token of a file name, or "" when it has none.
func LayerOf(filename string) string {
	n, err := Parse(filename)
	if err != nil {
		return ""
	}
	return n.Layer
}

// DateOf extracts the YYYYMMDD acquisition date from a file or folder name.
func DateOf(filename string) (date string, ok bool) {
	base := filepath.Base(filename)
	if m := dateRe.FindStringSubmatch(base); m != nil {
		return m[1], true
	}
	if n, err := Parse(base); err == nil && n.Mosaic {
		return n.Date, true
	}
	return
}
