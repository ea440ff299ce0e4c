package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	clmsprep "github.com/ttf-1234/clms-hrsi-api-advanced-processing"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/acquire"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/observability"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole chain",
	Long: `Runs every step in order:
  1. Determine the Sentinel-2 tiles intersecting each reference raster
  2. Query and download the configured products for those tiles
  3. Extract the downloaded archives
  4. Mosaic, reclassify, resample and cloud-filter as configured`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := newEnv()
		defer env.close()
		ctx := cmd.Context()
		if err := env.acquire(ctx); err != nil {
			return err
		}
		return env.finish(env.pipeline.Process(ctx))
	},
}

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Write the relevant tile list of each reference raster",
	RunE: func(cmd *cobra.Command, args []string) error {
		env := newEnv()
		defer env.close()
		return env.finish(env.matchTiles(cmd.Context()))
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Query and download products for the relevant tiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		env := newEnv()
		defer env.close()
		return env.download(cmd.Context())
	},
}

var unzipCmd = &cobra.Command{
	Use:   "unzip",
	Short: "Extract downloaded product archives in place",
	RunE: func(cmd *cobra.Command, args []string) error {
		env := newEnv()
		defer env.close()
		env.unzip()
		return nil
	},
}

var mosaicCmd = stageCommand("mosaic", "Merge same-day acquisitions per layer", (*pipeline.Pipeline).Mosaic)

var reclassifyCmd = stageCommand("reclassify", "Unify cloud and nodata codes", (*pipeline.Pipeline).Reclassify)

var resampleCmd = stageCommand("resample", "Warp rasters onto the reference grids", (*pipeline.Pipeline).Resample)

var filterCmd = stageCommand("filter", "Keep rasters under the cloud threshold", (*pipeline.Pipeline).FilterClouds)

func stageCommand(use, short string, stage func(*pipeline.Pipeline, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := newEnv()
			defer env.close()
			return env.finish(stage(env.pipeline, cmd.Context()))
		},
	}
}

// env wires the configuration to the GDAL toolbox and the pipeline.
type env struct {
	gdal     *clmsprep.GdalToolbox
	grid     *clmsprep.TileGrid
	fetcher  *acquire.Fetcher
	metrics  *observability.Metrics
	pipeline *pipeline.Pipeline
}

func newEnv() *env {
	e := &env{
		gdal:    clmsprep.NewGdalToolbox(),
		fetcher: acquire.NewFetcher(acquire.DefaultTimeout),
		metrics: observability.NewMetrics(),
	}
	e.pipeline = pipeline.New(pipeline.OptionsFromConfig(cfg), e.gdal.Deps(nil, e.metrics))
	return e
}

func (e *env) close() {
	if e.grid != nil {
		e.grid.Destroy()
	}
	e.gdal.Destroy()
}

func (e *env) areas() (names []string) {
	for _, r := range cfg.ReferenceRasters {
		names = append(names, r.Area())
	}
	return
}

// matchTiles makes sure the tile grid is present, then rebuilds the pipeline
// around it and writes every area's tile list.
func (e *env) matchTiles(ctx context.Context) (err error) {
	kml, err := e.fetcher.EnsureTileGrid(ctx, cfg.TileSystemURL, cfg.TileSystemDir)
	if err != nil {
		return
	}
	if e.grid, err = e.gdal.LoadTileGrid(kml); err != nil {
		return
	}
	e.pipeline = pipeline.New(pipeline.OptionsFromConfig(cfg), e.gdal.Deps(e.grid, e.metrics))
	tiles, err := e.pipeline.MatchTiles(ctx)
	if err != nil {
		return
	}
	for _, area := range e.areas() {
		log.Info("tiles determined", zap.String("area", area), zap.Strings("tiles", tiles[area]))
	}
	return
}

// acquire runs tile matching, download and extraction for the whole chain.
// A failing step is recorded and the steps depending on it are skipped, so
// the stages still run over the existing catalog. Only interruption stops it.
func (e *env) acquire(ctx context.Context) error {
	if err := e.matchTiles(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.pipeline.Skip(pipeline.StageTiles, cfg.TileSystemDir, "tile matching failed, skipping download", err)
		return nil
	}
	if err := e.download(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.pipeline.Skip(pipeline.StageDownload, cfg.DownloaderPath, "download skipped", err)
	}
	if cfg.Downloads() {
		e.unzip()
	}
	return nil
}

// download fetches the client when missing and queries every tile. Query
// failures are logged; only setup problems stop the run.
func (e *env) download(ctx context.Context) (err error) {
	if _, err = acquire.EnsureCredentials(cfg.CredentialsPath, cfg.Username, cfg.Password); err != nil {
		return
	}
	if err = e.fetcher.EnsureDownloader(ctx, cfg.DownloaderURL, cfg.DownloaderPath); err != nil {
		return
	}
	d := &acquire.Downloader{
		Querier: &acquire.CLIQuerier{
			Python:      cfg.PythonBin,
			Script:      cfg.DownloaderPath,
			QueryType:   cfg.QueryType,
			Credentials: cfg.CredentialsPath,
		},
		Layout:   cfg.Layout(),
		Products: cfg.Products,
		Start:    cfg.StartDate,
		End:      cfg.EndDate,
		Clean:    cfg.CleanBeforeDownload,
	}
	if derr := d.Download(ctx, e.areas()); derr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("some queries failed", zap.Error(derr))
	}
	return
}

func (e *env) unzip() {
	n, err := acquire.UnzipArchives(cfg.Layout(), e.areas(), cfg.Products)
	if err != nil {
		log.Warn("some archives could not be extracted", zap.Error(err))
	}
	log.Info("archives extracted", zap.Int("count", n))
}

// finish logs the run report and exports metrics. Unit failures are
// reported, not returned.
func (e *env) finish(err error) error {
	report := e.pipeline.Report()
	if rerr := report.Err(); rerr != nil {
		log.Warn("some units failed", zap.Error(rerr))
	}
	log.Info("run summary", zap.String("summary", report.Summary()))
	if werr := e.metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
		log.Warn("cannot write metrics textfile", zap.String("path", cfg.MetricsTextfile), zap.Error(werr))
	}
	return err
}
