package clmsprep

import "errors"

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrNoCRS            = errors.New("no crs given")
	ErrInvalidCRS       = errors.New("invalid crs")
	ErrInvalidTif       = errors.New("invalid tif")
	ErrEmptyTif         = errors.New("empty tif")
	ErrUnsupportedType  = errors.New("unsupported raster data type")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrTifWriteFailed   = errors.New("tif write failed")
	ErrEmptyTileGrid    = errors.New("tile grid has no tiles")
)
