// Package clmsprep binds the snow product pipeline to GDAL: raster file I/O,
// reprojection onto a reference grid, raster footprints and the Sentinel-2
// tile grid.
package clmsprep

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
)

type GdalToolbox struct {
	refMap map[string]gdal.SpatialReference
	rLock  sync.Mutex
	logTag string
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

// 初始化GDAL工具箱
func NewGdalToolbox() *GdalToolbox {
	return &GdalToolbox{
		refMap: map[string]gdal.SpatialReference{},
		logTag: "GdalToolbox:",
	}
}

// 获取crs对应的坐标系（可复用，故无需回收）
func (g *GdalToolbox) getCrsRef(crs string) (ref gdal.SpatialReference, err error) {
	key := strings.TrimSpace(crs)
	if key == "" {
		err = ErrNoCRS
		return
	}
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[key]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.SetFromUserInput(key); err != nil {
		log.Error(g.logTag+"set ref crs failed", zap.String("crs", key), zap.Error(err))
		ref.Destroy()
		err = fmt.Errorf("%w: %s", ErrInvalidCRS, key)
		return
	}
	// 数据轴次序固定为(经度,纬度)或(东,北)，与瓦片网格及栅格地理变换一致
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[key] = ref
	return
}

// 由WKT识别坐标系名称，能识别出权威编码时返回"EPSG:xxxx"形式，否则原样返回WKT
func (g *GdalToolbox) crsName(wkt string) (crs string) {
	if strings.TrimSpace(wkt) == "" {
		return
	}
	crs = wkt
	sp := gdal.CreateSpatialReference("")
	defer sp.Destroy()
	if err := sp.FromWKT(wkt); err != nil {
		log.Warn(g.logTag+"unparsable projection", zap.Error(err))
		return
	}
	if _, ok := sp.AttrValue("AUTHORITY", 1); !ok {
		_ = sp.AutoIdentifyEPSG() // 不规范的投影文件可能缺少权威编码
	}
	auth, okAuth := sp.AttrValue("AUTHORITY", 0)
	code, okCode := sp.AttrValue("AUTHORITY", 1)
	if okAuth && okCode && auth != "" && code != "" {
		crs = auth + ":" + code
	}
	return
}

// 获取crs对应的WKT，用于写入栅格文件
func (g *GdalToolbox) crsWkt(crs string) (wkt string, err error) {
	ref, err := g.getCrsRef(crs)
	if err != nil {
		return
	}
	g.rLock.Lock()
	defer g.rLock.Unlock()
	wkt, err = ref.ToWKT()
	return
}

// 释放工具箱缓存的坐标系
func (g *GdalToolbox) Destroy() {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	for k, ref := range g.refMap {
		ref.Destroy()
		delete(g.refMap, k)
	}
}
