package clmsprep

import (
	"fmt"
	"sync"

	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"
)

// Sentinel-2瓦片网格，由KML中每个要素的面几何与名称构成
type TileGrid struct {
	g      *GdalToolbox
	ref    gdal.SpatialReference
	hasRef bool
	tiles  []gridTile
	mu     sync.Mutex
}

type gridTile struct {
	name  string
	bound orb.Bound       // 用于快速排除
	parts []gdal.Geometry // 瓦片的面部分
}

// 从KML文件加载瓦片网格，要素顺序即网格原生顺序
func (g *GdalToolbox) LoadTileGrid(kml string) (tg *TileGrid, err error) {
	driver := gdal.OGRDriverByName(KML_DRIVER_NAME)
	ds, ok := driver.Open(kml, 0)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrGdalDriverOpen, kml)
		return
	}
	defer ds.Destroy()
	if ds.LayerCount() == 0 {
		err = ErrEmptyTileGrid
		return
	}
	tg = &TileGrid{g: g}
	defer func() {
		if err != nil {
			tg.Destroy()
			tg = nil
		}
	}()
	var (
		feature *gdal.Feature
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for li := 0; li < ds.LayerCount(); li++ {
		layer := ds.LayerByIndex(li)
		nameIdx := layer.Definition().FieldIndex(KML_FIELD_NAME)
		if nameIdx < 0 {
			err = fmt.Errorf(ErrColumnMissingTemplate, KML_FIELD_NAME)
			return
		}
		if li == 0 {
			tg.ref = layer.SpatialReference().Clone()
			tg.ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
			tg.hasRef = true
		}
		for {
			if feature = layer.NextFeature(); feature == nil {
				break
			}
			gc = append(gc, *feature)
			t := gridTile{name: feature.FieldAsString(nameIdx)}
			t.parts = polygonParts(feature.Geometry())
			if t.name == "" || len(t.parts) == 0 {
				for _, p := range t.parts {
					p.Destroy()
				}
				continue
			}
			t.bound = envelopeBound(t.parts[0])
			for _, p := range t.parts[1:] {
				t.bound = t.bound.Union(envelopeBound(p))
			}
			tg.tiles = append(tg.tiles, t)
		}
	}
	if len(tg.tiles) == 0 {
		err = ErrEmptyTileGrid
		return
	}
	log.Info(g.logTag+"loaded tile grid", zap.String("kml", kml), zap.Int("tiles", len(tg.tiles)))
	return
}

// KML中的瓦片通常为面与中心点组成的几何集合，仅保留其中的面（复制，调用者负责回收）
func polygonParts(geo gdal.Geometry) (parts []gdal.Geometry) {
	switch geo.Type() {
	case gdal.GT_GeometryCollection, gdal.GT_GeometryCollection25D, gdal.GT_MultiPolygon, gdal.GT_MultiPolygon25D:
		for i := 0; i < geo.GeometryCount(); i++ {
			parts = append(parts, polygonParts(geo.Geometry(i))...)
		}
	default:
		if geo.Area() > 0 {
			parts = append(parts, geo.Clone())
		}
	}
	return
}

func envelopeBound(geo gdal.Geometry) orb.Bound {
	env := geo.Envelope()
	return orb.Bound{
		Min: orb.Point{env.MinX(), env.MinY()},
		Max: orb.Point{env.MaxX(), env.MaxY()},
	}
}

func (tg *TileGrid) Len() int {
	return len(tg.tiles)
}

// 返回与范围相交的瓦片名称（按网格原生顺序），范围先转换到网格坐标系，边界接触也算相交
func (tg *TileGrid) Intersecting(fp raster.Footprint) (ids []string, err error) {
	ref, err := tg.g.getCrsRef(fp.CRS)
	if err != nil {
		return
	}
	aoi, err := gdal.CreateFromWKT(wkt.MarshalString(fp.Bounds.ToPolygon()), ref)
	if err != nil {
		log.Error(tg.g.logTag+"parse footprint failed", zap.Error(err))
		return
	}
	defer aoi.Destroy()
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if err = aoi.TransformTo(tg.ref); err != nil {
		log.Error(tg.g.logTag+"footprint transform failed", zap.String("crs", fp.CRS), zap.Error(err))
		return
	}
	box := envelopeBound(aoi)
	ids = []string{}
	for _, t := range tg.tiles {
		if !t.bound.Intersects(box) {
			continue
		}
		for _, p := range t.parts {
			if p.Intersects(aoi) {
				ids = append(ids, t.name)
				break
			}
		}
	}
	log.Info(tg.g.logTag+"matched tiles", zap.String("crs", fp.CRS), zap.Strings("tiles", ids))
	return
}

// 释放瓦片几何与网格坐标系
func (tg *TileGrid) Destroy() {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	for _, t := range tg.tiles {
		for _, p := range t.parts {
			p.Destroy()
		}
	}
	tg.tiles = nil
	if tg.hasRef {
		tg.ref.Destroy()
		tg.hasRef = false
	}
}
