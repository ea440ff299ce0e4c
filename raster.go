package clmsprep

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/lukeroth/gdal"
	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

var (
	gdalTypes = map[raster.DataType]gdal.DataType{
		raster.Byte:    gdal.Byte,
		raster.UInt16:  gdal.UInt16,
		raster.Int16:   gdal.Int16,
		raster.UInt32:  gdal.UInt32,
		raster.Int32:   gdal.Int32,
		raster.Float32: gdal.Float32,
		raster.Float64: gdal.Float64,
	}
	rasterTypes = map[gdal.DataType]raster.DataType{}
)

func init() {
	for k, v := range gdalTypes {
		rasterTypes[v] = k
	}
}

// 读取整个栅格文件，所有波段转为float64
func (g *GdalToolbox) Read(path string) (r *raster.Raster, err error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("path", path), zap.Error(err))
		err = fmt.Errorf("%w: %s", ErrInvalidTif, path)
		return
	}
	defer ds.Close()
	if r, err = g.readDataset(ds); err != nil {
		log.Error(g.logTag+"read tif failed", zap.String("path", path), zap.Error(err))
		err = fmt.Errorf("%w: %s", err, path)
	}
	return
}

func (g *GdalToolbox) readDataset(ds gdal.Dataset) (r *raster.Raster, err error) {
	bc := ds.RasterCount()
	if bc == 0 {
		err = ErrEmptyTif
		return
	}
	grid := raster.Grid{
		CRS:       g.crsName(ds.Projection()),
		Transform: ds.GeoTransform(),
		Width:     ds.RasterXSize(),
		Height:    ds.RasterYSize(),
	}
	first := ds.RasterBand(1)
	dt, ok := rasterTypes[first.RasterDataType()]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, first.RasterDataType().Name())
		return
	}
	r = &raster.Raster{Grid: grid, DataType: dt, Bands: make([][]float64, bc)}
	if v, valid := first.NoDataValue(); valid {
		r.NoData = raster.NoDataValue(v)
	}
	for i := 0; i < bc; i++ {
		buf := make([]float64, grid.Size())
		if err = ds.RasterBand(i+1).IO(gdal.Read, 0, 0, grid.Width, grid.Height, buf, grid.Width, grid.Height, 0, 0); err != nil {
			log.Error(g.logTag+"read tif band failed", zap.Int("band", i+1), zap.Error(err))
			err = ErrTifReadFailed
			return
		}
		r.Bands[i] = buf
	}
	return
}

// 将栅格写为GeoTIFF（已存在则覆盖）
func (g *GdalToolbox) Write(path string, r *raster.Raster) (err error) {
	if err = r.Validate(); err != nil {
		return
	}
	if err = utils.EnsureDir(filepath.Dir(path)); err != nil {
		return
	}
	driver, err := gdal.GetDriverByName(GTIFF_DRIVER_NAME)
	if err != nil {
		err = ErrGdalDriverCreate
		return
	}
	ds, err := g.createDataset(driver, path, r, GTIFF_CREATE_OPTIONS)
	if err != nil {
		log.Error(g.logTag+"write tif failed", zap.String("path", path), zap.Error(err))
		return
	}
	ds.Close()
	log.Debug(g.logTag+"wrote tif", zap.String("path", path), zap.Int("bands", len(r.Bands)))
	return
}

// 按栅格的网格、坐标系与nodata创建数据集并写入全部波段，调用者负责Close
func (g *GdalToolbox) createDataset(driver gdal.Driver, name string, r *raster.Raster, opts []string) (ds gdal.Dataset, err error) {
	dt, ok := gdalTypes[r.DataType]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, r.DataType)
		return
	}
	ds = driver.Create(name, r.Width, r.Height, len(r.Bands), dt, opts)
	defer func() {
		if err != nil {
			ds.Close()
		}
	}()
	if err = ds.SetGeoTransform(r.Transform); err != nil {
		return
	}
	if r.CRS != "" {
		var wkt string
		if wkt, err = g.crsWkt(r.CRS); err != nil {
			return
		}
		if err = ds.SetProjection(wkt); err != nil {
			return
		}
	}
	for i, b := range r.Bands {
		band := ds.RasterBand(i + 1)
		if r.NoData != nil {
			if err = band.SetNoDataValue(*r.NoData); err != nil {
				return
			}
		}
		if err = band.IO(gdal.Write, 0, 0, r.Width, r.Height, b, r.Width, r.Height, 0, 0); err != nil {
			err = ErrTifWriteFailed
			return
		}
	}
	return
}

// 拼接多景栅格：成员须为北向上、同坐标系、同分辨率、同波段数；
// VRT中靠后的源覆盖靠前的，故逆序加入，使列表中靠前的有效像元优先
func (g *GdalToolbox) Merge(paths []string) (out *raster.Raster, err error) {
	if len(paths) == 0 {
		err = raster.ErrEmptyInput
		return
	}
	var (
		dss   = make([]gdal.Dataset, 0, len(paths))
		grids = make([]raster.Grid, 0, len(paths))
	)
	defer func() {
		for _, ds := range dss {
			ds.Close()
		}
	}()
	for _, path := range paths {
		ds, oerr := gdal.Open(path, gdal.ReadOnly)
		if oerr != nil {
			log.Error(g.logTag+"open mosaic member failed", zap.String("path", path), zap.Error(oerr))
			err = fmt.Errorf("%w: %s", ErrInvalidTif, path)
			return
		}
		dss = append(dss, ds)
		grids = append(grids, raster.Grid{
			CRS:       g.crsName(ds.Projection()),
			Transform: ds.GeoTransform(),
			Width:     ds.RasterXSize(),
			Height:    ds.RasterYSize(),
		})
		if ds.RasterCount() == 0 {
			err = fmt.Errorf("%w: %s", ErrEmptyTif, path)
			return
		}
		if ds.RasterCount() != dss[0].RasterCount() {
			err = raster.ErrBandCount
			return
		}
	}
	if err = raster.Mergeable(grids); err != nil {
		return
	}
	first := dss[0].RasterBand(1)
	dt, ok := rasterTypes[first.RasterDataType()]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, first.RasterDataType().Name())
		return
	}
	opts := []string{"-resolution", "highest", "-overwrite"}
	var nodata *float64
	if v, valid := first.NoDataValue(); valid {
		nodata = raster.NoDataValue(v)
		opts = append(opts, "-srcnodata", utils.FloatArg(v), "-vrtnodata", utils.FloatArg(v))
	}
	srcs := make([]gdal.Dataset, len(dss))
	for i, ds := range dss {
		srcs[len(dss)-1-i] = ds
	}
	tmpVrt := filepath.Join(os.TempDir(), "clmsprep-"+uuid.NewString()+".vrt")
	defer os.Remove(tmpVrt)
	ods, err := gdal.BuildVRT(tmpVrt, srcs, nil, opts)
	if err != nil {
		log.Error(g.logTag+"failed to build vrt", zap.Error(err))
		return
	}
	defer ods.Close()
	if out, err = g.readDataset(ods); err != nil {
		return
	}
	out.DataType = dt
	out.NoData = nodata
	for _, band := range out.Bands {
		for i, v := range band {
			band[i] = raster.Cast(v, dt)
		}
	}
	log.Debug(g.logTag+"merged rasters", zap.Int("members", len(paths)), zap.Int("width", out.Width), zap.Int("height", out.Height))
	return
}

// 获取栅格文件的范围与坐标系（不读取像元）
func (g *GdalToolbox) Footprint(path string) (fp raster.Footprint, err error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		log.Error(g.logTag+"open raster failed", zap.String("path", path), zap.Error(err))
		err = fmt.Errorf("%w: %s", ErrInvalidTif, path)
		return
	}
	defer ds.Close()
	grid := raster.Grid{Transform: ds.GeoTransform(), Width: ds.RasterXSize(), Height: ds.RasterYSize()}
	if !grid.NorthUp() {
		err = raster.ErrRotated
		return
	}
	fp = raster.Footprint{Bounds: grid.Bounds(), CRS: g.crsName(ds.Projection())}
	return
}

// 将栅格重投影并重采样到目标网格，输出严格采用目标的网格、数据类型与nodata
func (g *GdalToolbox) Warp(src *raster.Raster, dst raster.Target, m raster.Method) (out *raster.Raster, err error) {
	if m != raster.Nearest && m != raster.Bilinear {
		err = raster.ErrUnknownMethod
		return
	}
	if !src.NorthUp() || !dst.NorthUp() {
		err = raster.ErrRotated
		return
	}
	if src.CRS == "" || dst.CRS == "" {
		err = ErrNoCRS
		return
	}
	if _, ok := gdalTypes[dst.DataType]; !ok {
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, dst.DataType)
		return
	}
	dstWkt, err := g.crsWkt(dst.CRS)
	if err != nil {
		return
	}
	driver, err := gdal.GetDriverByName(MEM_DRIVER_NAME)
	if err != nil {
		err = ErrGdalDriverCreate
		return
	}
	sds, err := g.createDataset(driver, "", src, nil)
	if err != nil {
		return
	}
	defer sds.Close()

	b := dst.Bounds()
	opts := []string{
		"-of", MEM_DRIVER_NAME,
		"-t_srs", dstWkt,
		"-te", utils.FloatArg(b.Min[0]), utils.FloatArg(b.Min[1]), utils.FloatArg(b.Max[0]), utils.FloatArg(b.Max[1]),
		"-ts", utils.IntArg(dst.Width), utils.IntArg(dst.Height),
		"-r", m.String(),
		"-ot", string(dst.DataType),
		"-dstnodata", utils.FloatArg(dst.NoData),
	}
	if src.NoData != nil {
		opts = append(opts, "-srcnodata", utils.FloatArg(*src.NoData))
	}
	log.Debug(g.logTag+"warp raster", zap.String("from", src.CRS), zap.String("to", dst.CRS), zap.String("method", m.String()))
	ods, err := gdal.Warp("", nil, []gdal.Dataset{sds}, opts)
	if err != nil {
		log.Error(g.logTag+"failed to warp raster", zap.Error(err))
		return
	}
	defer ods.Close()
	if out, err = g.readDataset(ods); err != nil {
		return
	}
	out.Grid = dst.Grid
	out.DataType = dst.DataType
	out.NoData = raster.NoDataValue(dst.NoData)
	for _, band := range out.Bands {
		for i, v := range band {
			band[i] = raster.Cast(v, dst.DataType)
		}
	}
	return
}
