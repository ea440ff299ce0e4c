package clmsprep

import (
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/pipeline"
)

var (
	_ pipeline.Store           = (*GdalToolbox)(nil)
	_ pipeline.Merger          = (*GdalToolbox)(nil)
	_ pipeline.Warper          = (*GdalToolbox)(nil)
	_ pipeline.FootprintReader = (*GdalToolbox)(nil)
	_ pipeline.TileIndex       = (*TileGrid)(nil)
)

// 组装流水线依赖，grid为空时只能运行不需要瓦片网格的阶段
func (g *GdalToolbox) Deps(grid *TileGrid, metrics *observability.Metrics) pipeline.Deps {
	deps := pipeline.Deps{
		Store:      g,
		Merger:     g,
		Warper:     g,
		Footprints: g,
		Metrics:    metrics,
	}
	if grid != nil {
		deps.Tiles = grid
	}
	return deps
}
