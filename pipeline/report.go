package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
)

// UnitError is the class of per-unit failures: the unit is skipped and its
// stage goes on with the rest.
var UnitError = errs.Class("unit")

// Stage names, also used as metric labels.
const (
	StageTiles      = "tiles"
	StageDownload   = "download"
	StageMosaic     = "mosaic"
	StageReclassify = "reclassify"
	StageResample   = "resample"
	StageFilter     = "filter"
)

// Diagnostic is one user visible line of the run report. Err is set for
// failures and nil for informational notes such as a discarded raster.
type Diagnostic struct {
	Stage   string
	Area    string
	Product string
	Path    string
	Message string
	Err     error
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", d.Stage)
	if d.Area != "" {
		fmt.Fprintf(&b, " %s", d.Area)
	}
	if d.Product != "" {
		fmt.Fprintf(&b, "/%s", d.Product)
	}
	if d.Path != "" {
		fmt.Fprintf(&b, " %s", d.Path)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	if d.Err != nil {
		fmt.Fprintf(&b, ": %v", d.Err)
	}
	return b.String()
}

// Report collects diagnostics from concurrent units.
type Report struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (r *Report) add(d Diagnostic) {
	fields := []zap.Field{
		zap.String("stage", d.Stage),
		zap.String("area", d.Area),
		zap.String("product", d.Product),
	}
	if d.Path != "" {
		fields = append(fields, zap.String("path", d.Path))
	}
	if d.Err != nil {
		log.Warn(d.Message, append(fields, zap.Error(d.Err))...)
	} else {
		log.Info(d.Message, fields...)
	}
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
}

// Diagnostics returns the diagnostics of the given stages (all when none given).
func (r *Report) Diagnostics(stages ...string) (out []Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diags {
		if len(stages) == 0 || contains(stages, d.Stage) {
			out = append(out, d)
		}
	}
	return
}

// Err combines every unit failure, nil when all units succeeded.
func (r *Report) Err() (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diags {
		if d.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s %s: %w", d.Stage, d.Path, d.Err))
		}
	}
	return
}

// Summary counts diagnostics per stage, failures apart.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	notes := map[string]int{}
	fails := map[string]int{}
	for _, d := range r.diags {
		if d.Err != nil {
			fails[d.Stage]++
		} else {
			notes[d.Stage]++
		}
	}
	var stages []string
	for s := range notes {
		stages = append(stages, s)
	}
	for s := range fails {
		if _, ok := notes[s]; !ok {
			stages = append(stages, s)
		}
	}
	sort.Strings(stages)
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, fmt.Sprintf("%s: %d notes, %d failures", s, notes[s], fails[s]))
	}
	return strings.Join(parts, "; ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
