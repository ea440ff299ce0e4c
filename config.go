package clmsprep

const (
	GTIFF_DRIVER_NAME = "GTiff"
	MEM_DRIVER_NAME   = "MEM"
	KML_DRIVER_NAME   = "KML"
	KML_FIELD_NAME    = "Name"

	ErrColumnMissingTemplate = `tile grid has no %s field`
)

var GTIFF_CREATE_OPTIONS = []string{"COMPRESS=LZW", "TILED=YES"}
