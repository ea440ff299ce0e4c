package pipeline

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/raster"
)

const (
	testCRS  = "EPSG:32632"
	testDate = "20230701"
	folderA  = "FSC_20230701T101500_S2B_T32TPS_V102_1"
	folderB  = "FSC_20230701T101500_S2B_T32TPT_V102_1"
	folderC  = "FSC_20230701T101500_S2B_T32TPU_V102_1"
)

// gobStore keeps rasters as gob files, standing in for GeoTIFF in tests.
type gobStore struct{}

func (gobStore) Read(path string) (*raster.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := &raster.Raster{}
	if err = gob.NewDecoder(f).Decode(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (gobStore) Write(path string, r *raster.Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(f).Encode(r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// gobMerger reads members from gobStore and mosaics them in memory.
type gobMerger struct{}

func (gobMerger) Merge(paths []string) (*raster.Raster, error) {
	rs := make([]*raster.Raster, 0, len(paths))
	for _, path := range paths {
		r, err := gobStore{}.Read(path)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return raster.Merge(rs)
}

// targetRecorder answers every warp with an empty raster on the requested target.
type targetRecorder struct {
	mu      sync.Mutex
	targets []raster.Target
}

func (w *targetRecorder) Warp(_ *raster.Raster, dst raster.Target, _ raster.Method) (*raster.Raster, error) {
	w.mu.Lock()
	w.targets = append(w.targets, dst)
	w.mu.Unlock()
	return raster.New(dst.Grid, dst.DataType, raster.NoDataValue(dst.NoData), 1), nil
}

func put(t *testing.T, path string, r *raster.Raster) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, gobStore{}.Write(path, r))
}

func get(t *testing.T, path string) *raster.Raster {
	t.Helper()
	r, err := gobStore{}.Read(path)
	require.NoError(t, err)
	return r
}

// byteTile is a north-up 10 m Byte raster with nodata 255 whose top left corner is (x0, y0).
func byteTile(x0, y0 float64, w, h int, values []float64) *raster.Raster {
	return &raster.Raster{
		Grid: raster.Grid{
			CRS:       testCRS,
			Transform: [6]float64{x0, 10, 0, y0, 0, -10},
			Width:     w,
			Height:    h,
		},
		DataType: raster.Byte,
		NoData:   raster.NoDataValue(raster.RawNoData),
		Bands:    [][]float64{values},
	}
}

// cloudy returns n values with the first k set to the raw cloud code.
func cloudy(n, k int, clear float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = clear
		if i < k {
			v[i] = raster.RawCloud
		}
	}
	return v
}

// listFiles returns every file under root relative to it, sorted.
func listFiles(t *testing.T, root string) (out []string) {
	t.Helper()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		out = append(out, filepath.ToSlash(rel))
		return err
	})
	require.NoError(t, err)
	sort.Strings(out)
	return
}

type fixture struct {
	root   string
	layout catalog.Layout
	area   Area
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root: root,
		layout: catalog.Layout{
			Original:  filepath.Join(root, "original"),
			Processed: filepath.Join(root, "processed"),
			TileDir:   filepath.Join(root, "tile_system"),
		},
		area:  Area{Name: "dem", Path: filepath.Join(root, "ref", "dem.tif"), CRS: testCRS},
		clock: clockwork.NewFakeClock(),
	}
	ref := raster.New(raster.Grid{
		CRS:       testCRS,
		Transform: [6]float64{0, 10, 0, 20, 0, -10},
		Width:     10,
		Height:    2,
	}, raster.Float32, raster.NoDataValue(raster.UnifiedNoData), 1)
	put(t, f.area.Path, ref)
	return f
}

func (f *fixture) acquisition(t *testing.T, folder, layer string, r *raster.Raster) string {
	t.Helper()
	path := filepath.Join(f.layout.OriginalDir(f.area.Name, catalog.ProductFSC), folder, folder+"_"+layer+".tif")
	put(t, path, r)
	return path
}

func (f *fixture) pipeline(opts Options) *Pipeline {
	return f.pipelineWith(opts, Deps{Store: gobStore{}, Merger: gobMerger{}, Warper: raster.GridWarper{}})
}

func (f *fixture) pipelineWith(opts Options, deps Deps) *Pipeline {
	opts.Layout = f.layout
	opts.Areas = []Area{f.area}
	if opts.Products == nil {
		opts.Products = []string{catalog.ProductFSC}
	}
	deps.Clock = f.clock
	return New(opts, deps)
}

type fakeFootprints map[string]raster.Footprint

func (f fakeFootprints) Footprint(path string) (raster.Footprint, error) {
	fp, ok := f[path]
	if !ok {
		return raster.Footprint{}, os.ErrNotExist
	}
	return fp, nil
}

// boundsIndex is a tile grid of boxes in a single CRS.
type boundsIndex struct {
	crs   string
	ids   []string
	tiles []orb.Bound
}

func (b boundsIndex) Intersecting(fp raster.Footprint) (ids []string, err error) {
	if !raster.SameCRS(fp.CRS, b.crs) {
		err = raster.ErrCRSMismatch
		return
	}
	for i, t := range b.tiles {
		if t.Intersects(fp.Bounds) {
			ids = append(ids, b.ids[i])
		}
	}
	return
}
