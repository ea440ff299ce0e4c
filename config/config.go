// Package config loads and validates the pipeline configuration.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/errs"
	"gopkg.in/yaml.v3"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
)

// Error is the class of configuration errors. They are fatal and reported
// before any stage or network work starts.
var Error = errs.Class("config")

const (
	QueryOnly        = "query"
	DownloadOnly     = "download"
	QueryAndDownload = "query_and_download"

	DefaultTileSystemDir  = "data/tile_system"
	DefaultTileSystemURL  = "https://sentiwiki.copernicus.eu/__attachments/1692737/S2A_OPER_GIP_TILPAR_MPC__20151209T095117_V20150622T000000_21000101T000000_B00.zip?inst-v=7e368646-a179-477f-af62-26dcc645dd8a"
	DefaultDownloaderURL  = "https://raw.githubusercontent.com/eea/clms-hrsi-api-client-python/refs/heads/main/clms_hrsi_downloader.py"
	DefaultDownloaderPath = "CLMS_downloader.py"
	DefaultCredentials    = "data/clms_data/credentials.txt"
	DefaultPythonBin      = "python"
	DefaultThreshold      = 0.2

	envUsername = "CLMS_USERNAME"
	envPassword = "CLMS_PASSWORD"
)

var (
	QueryTypes = []string{QueryOnly, DownloadOnly, QueryAndDownload}

	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
)

// ReferenceRaster names an area of interest by its reference raster file.
type ReferenceRaster struct {
	Name string `yaml:"name"`
	CRS  string `yaml:"crs"`
}

// Area is the area identifier: the raster file name without extension.
func (r ReferenceRaster) Area() string {
	return strings.TrimSuffix(r.Name, filepath.Ext(r.Name))
}

// Config holds all pipeline settings.
type Config struct {
	ReferenceRasters   []ReferenceRaster `yaml:"reference_rasters"`
	ReferenceRasterDir string            `yaml:"reference_raster_dir"`

	Username  string   `yaml:"clms_username"`
	Password  string   `yaml:"clms_password"`
	QueryType string   `yaml:"clms_query_type"`
	Products  []string `yaml:"clms_product"`
	StartDate string   `yaml:"start_date"`
	EndDate   string   `yaml:"end_date"`

	OutputOriginal  string `yaml:"output_path_original"`
	OutputProcessed string `yaml:"output_path_processed"`

	MosaicOutput bool    `yaml:"mosaic_output"`
	Reclassify   bool    `yaml:"reclassify"`
	CropResample bool    `yaml:"crop_resample"`
	FilterCC     bool    `yaml:"filter_cc"`
	CCThreshold  float64 `yaml:"cc_threshold"`

	TileSystemDir       string `yaml:"tile_system_dir"`
	TileSystemURL       string `yaml:"tile_system_url"`
	DownloaderURL       string `yaml:"downloader_url"`
	DownloaderPath      string `yaml:"downloader_path"`
	PythonBin           string `yaml:"python_bin"`
	CredentialsPath     string `yaml:"credentials_path"`
	CleanBeforeDownload bool   `yaml:"clean_before_download"`

	Workers         int    `yaml:"workers"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Default returns a configuration with every optional field set.
func Default() *Config {
	return &Config{
		ReferenceRasterDir: "data/reference_raster",
		QueryType:          QueryAndDownload,
		OutputOriginal:     "data/clms_data/original",
		OutputProcessed:    "data/clms_data/processed",
		MosaicOutput:       true,
		Reclassify:         true,
		CropResample:       true,
		CCThreshold:        DefaultThreshold,
		TileSystemDir:      DefaultTileSystemDir,
		TileSystemURL:      DefaultTileSystemURL,
		DownloaderURL:      DefaultDownloaderURL,
		DownloaderPath:     DefaultDownloaderPath,
		PythonBin:          DefaultPythonBin,
		CredentialsPath:    DefaultCredentials,
		Workers:            1,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// Load reads a YAML file over the defaults, applies env overrides and
// validates the result.
func Load(path string) (cfg *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = Error.Wrap(err)
		return
	}
	if cfg, err = Parse(data); err != nil {
		return
	}
	err = cfg.Validate()
	return
}

// Parse decodes YAML over the defaults and applies env overrides without validating.
func Parse(data []byte) (cfg *Config, err error) {
	cfg = Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		cfg = nil
		err = Error.New("decode: %v", err)
		return
	}
	err = nil
	cfg.applyEnv()
	return
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(envPassword); v != "" {
		c.Password = v
	}
}

// Validate checks every setting. It does not touch the network.
func (c *Config) Validate() error {
	var group errs.Group
	if len(c.ReferenceRasters) == 0 {
		group.Add(Error.New("reference_rasters is empty"))
	}
	seen := map[string]bool{}
	for _, r := range c.ReferenceRasters {
		if r.Name == "" {
			group.Add(Error.New("reference raster without name"))
			continue
		}
		if seen[r.Area()] {
			group.Add(Error.New("duplicate area %q", r.Area()))
		}
		seen[r.Area()] = true
		if _, err := os.Stat(c.ReferencePath(r)); err != nil {
			group.Add(Error.New("reference raster %s: %v", r.Name, err))
		}
	}
	if len(c.Products) == 0 {
		group.Add(Error.New("clms_product is empty"))
	}
	for _, p := range c.Products {
		if !catalog.IsProduct(p) {
			group.Add(Error.New("invalid product %q, allowed: %s", p, strings.Join(catalog.Products, ", ")))
		}
	}
	if !dateRe.MatchString(c.StartDate) {
		group.Add(Error.New("start_date %q: expected YYYY-MM-DDTHH:MM:SSZ", c.StartDate))
	}
	if !dateRe.MatchString(c.EndDate) {
		group.Add(Error.New("end_date %q: expected YYYY-MM-DDTHH:MM:SSZ", c.EndDate))
	}
	if !validQueryType(c.QueryType) {
		group.Add(Error.New("invalid query type %q, allowed: %s", c.QueryType, strings.Join(QueryTypes, ", ")))
	}
	if c.CCThreshold < 0 || c.CCThreshold > 1 {
		group.Add(Error.New("cc_threshold %v outside [0, 1]", c.CCThreshold))
	}
	if c.OutputOriginal == "" || c.OutputProcessed == "" {
		group.Add(Error.New("output paths must be set"))
	}
	if c.Workers < 1 {
		group.Add(Error.New("workers must be >= 1, got %d", c.Workers))
	}
	return group.Err()
}

func validQueryType(q string) bool {
	for _, v := range QueryTypes {
		if v == q {
			return true
		}
	}
	return false
}

// ReferencePath is the file path of a reference raster.
func (c *Config) ReferencePath(r ReferenceRaster) string {
	return filepath.Join(c.ReferenceRasterDir, r.Name)
}

// Layout resolves the catalog directories of this configuration.
func (c *Config) Layout() catalog.Layout {
	return catalog.Layout{
		Original:  c.OutputOriginal,
		Processed: c.OutputProcessed,
		TileDir:   c.TileSystemDir,
	}
}

// Downloads reports whether the download client should fetch archives.
func (c *Config) Downloads() bool {
	return c.QueryType != QueryOnly
}
