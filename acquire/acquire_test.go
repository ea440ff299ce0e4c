package acquire

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/catalog"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func serve(t *testing.T, routes map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := serve(t, map[string][]byte{"/tool.py": []byte("print('hi')\n"), "/empty": {}})
	f := NewFetcher(5 * time.Second)
	dir := t.TempDir()

	size, err := f.Fetch(context.Background(), srv.URL+"/tool.py", filepath.Join(dir, "tool.py"))
	require.NoError(t, err)
	assert.EqualValues(t, 12, size)
	assert.FileExists(t, filepath.Join(dir, "tool.py"))

	_, err = f.Fetch(context.Background(), srv.URL+"/empty", filepath.Join(dir, "empty"))
	assert.ErrorIs(t, err, ErrEmptyDownload)
	assert.True(t, Error.Has(err))
	assert.NoFileExists(t, filepath.Join(dir, "empty"))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrHTTPStatus)

	// no temporary files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnsureDownloader_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CLMS_downloader.py")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))
	// the URL is never contacted
	require.NoError(t, NewFetcher(time.Second).EnsureDownloader(context.Background(), "http://127.0.0.1:0/x", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestEnsureTileGrid(t *testing.T) {
	archive := zipBytes(t, map[string]string{"S2A_OPER_GIP_TILPAR.kml": "<kml/>"})
	srv := serve(t, map[string][]byte{"/grid.zip": archive})
	dir := filepath.Join(t.TempDir(), "tile_system")
	f := NewFetcher(5 * time.Second)

	path, err := f.EnsureTileGrid(context.Background(), srv.URL+"/grid.zip", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "S2A_OPER_GIP_TILPAR.kml"), path)
	assert.NoFileExists(t, filepath.Join(dir, tileArchive))

	// second call finds the grid without downloading
	path2, err := f.EnsureTileGrid(context.Background(), srv.URL+"/gone.zip", dir)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
}

func TestEnsureTileGrid_NoKML(t *testing.T) {
	srv := serve(t, map[string][]byte{"/grid.zip": zipBytes(t, map[string]string{"readme.txt": "x"})})
	_, err := NewFetcher(5*time.Second).EnsureTileGrid(context.Background(), srv.URL+"/grid.zip", t.TempDir())
	assert.ErrorIs(t, err, ErrNoKML)
}

func TestEnsureCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clms_data", "credentials.txt")

	rewritten, err := EnsureCredentials(path, "user", "secret")
	require.NoError(t, err)
	assert.False(t, rewritten)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "user:secret\n", string(data))

	// well formed files are left alone
	require.NoError(t, os.WriteFile(path, []byte("other:pw\n"), 0o600))
	rewritten, err = EnsureCredentials(path, "user", "secret")
	require.NoError(t, err)
	assert.False(t, rewritten)
	data, _ = os.ReadFile(path)
	assert.Equal(t, "other:pw\n", string(data))

	for _, bad := range []string{"", "user", "user:", ":pw"} {
		require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))
		rewritten, err = EnsureCredentials(path, "user", "secret")
		require.NoError(t, err, bad)
		assert.True(t, rewritten, bad)
		data, _ = os.ReadFile(path)
		assert.Equal(t, "user:secret\n", string(data), bad)
	}
}

func TestEnsureCredentials_NoneConfigured(t *testing.T) {
	_, err := EnsureCredentials(filepath.Join(t.TempDir(), "c.txt"), "", "")
	assert.True(t, Error.Has(err))
}

func TestCLIQuerier_Args(t *testing.T) {
	q := &CLIQuerier{Python: "python", Script: "CLMS_downloader.py", QueryType: "query_and_download", Credentials: "creds.txt"}
	args := q.Args(Request{Tile: "32TPS", Product: "FSC", Start: "2023-07-01T00:00:00Z", End: "2023-07-02T23:59:59Z", OutDir: "out"})
	assert.Equal(t, []string{
		"CLMS_downloader.py", "-query_and_download",
		"-productIdentifier", "32TPS",
		"-productType", "FSC",
		"-obsDateMin", "2023-07-01T00:00:00Z",
		"-obsDateMax", "2023-07-02T23:59:59Z",
		"-hrsi_credentials", "creds.txt",
		"out",
	}, args)
}

// fakeClient writes a stand-in client script run by /bin/sh: it writes
// result_file.txt into its last argument, or fails when the tile is "bad".
func fakeClient(t *testing.T) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "client.sh")
	body := `#!/bin/sh
for last; do :; done
if [ "$3" = "bad" ]; then echo "no such tile" >&2; exit 3; fi
echo "$3 $5" > "$last/result_file.txt"
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

func TestCLIQuerier_Query(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("needs /bin/sh")
	}
	q := &CLIQuerier{Python: "/bin/sh", Script: fakeClient(t), QueryType: "query", Credentials: "c.txt"}
	out := filepath.Join(t.TempDir(), "dem", "FSC")

	res, err := q.Query(context.Background(), Request{Tile: "32TPS", Product: "FSC", OutDir: out})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "result_file_32TPS_FSC.txt"), res.ResultFile)
	data, err := os.ReadFile(res.ResultFile)
	require.NoError(t, err)
	assert.Equal(t, "32TPS FSC\n", string(data))
	assert.NoFileExists(t, filepath.Join(out, resultFile))

	_, err = q.Query(context.Background(), Request{Tile: "bad", Product: "FSC", OutDir: out})
	require.Error(t, err)
	assert.True(t, Error.Has(err))
	assert.Contains(t, err.Error(), "no such tile")
}

func TestRenameResultFile_Missing(t *testing.T) {
	_, err := RenameResultFile(t.TempDir(), "32TPS", "FSC")
	assert.ErrorIs(t, err, ErrNoResultFile)
}

type recordingQuerier struct {
	mu   sync.Mutex
	reqs []Request
	fail map[string]bool
}

func (r *recordingQuerier) Query(_ context.Context, req Request) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.fail[req.Tile] {
		return Outcome{}, Error.New("client failed for %s", req.Tile)
	}
	return Outcome{}, nil
}

func TestDownloader(t *testing.T) {
	root := t.TempDir()
	layout := catalog.Layout{
		Original:  filepath.Join(root, "original"),
		Processed: filepath.Join(root, "processed"),
		TileDir:   filepath.Join(root, "tiles"),
	}
	require.NoError(t, catalog.WriteTileList(layout.RelevantTilesFile("dem"), []string{"32TPS", "bad"}))
	require.NoError(t, catalog.WriteTileList(layout.RelevantTilesFile("empty"), nil))

	stale := filepath.Join(layout.OriginalDir("dem", "FSC"), "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	staleOutput := filepath.Join(layout.StageDir("dem", "FSC", catalog.DirResampled), "old", "old_FSCOG_resampled.tif")
	require.NoError(t, os.MkdirAll(filepath.Dir(staleOutput), 0o755))
	require.NoError(t, os.WriteFile(staleOutput, []byte("x"), 0o644))

	q := &recordingQuerier{fail: map[string]bool{"bad": true}}
	d := &Downloader{Querier: q, Layout: layout, Products: []string{"FSC", "PSA"}, Start: "s", End: "e", Clean: true}
	err := d.Download(context.Background(), []string{"dem", "empty", "missing"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "client failed for bad")
	require.Len(t, q.reqs, 4)
	assert.Equal(t, Request{Tile: "32TPS", Product: "FSC", Start: "s", End: "e", OutDir: layout.OriginalDir("dem", "FSC")}, q.reqs[0])
	assert.Equal(t, "PSA", q.reqs[3].Product)
	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, staleOutput)
	assert.DirExists(t, layout.OriginalDir("dem", "FSC"))
}

func TestUnzipArchives(t *testing.T) {
	root := t.TempDir()
	layout := catalog.Layout{Original: root}
	dir := layout.OriginalDir("dem", "FSC")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	folder := "FSC_20230701T101500_S2B_T32TPS_V102_1"
	good := zipBytes(t, map[string]string{folder + "/" + folder + "_FSCOG.tif": "tif"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, folder+".zip"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.zip"), []byte("not a zip"), 0o644))

	n, err := UnzipArchives(layout, []string{"dem", "nowhere"}, []string{"FSC"})
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dir, folder, folder+"_FSCOG.tif"))
	assert.NoFileExists(t, filepath.Join(dir, folder+".zip"))
	assert.FileExists(t, filepath.Join(dir, "broken.zip"))
}

func TestUnzip_RejectsSlip(t *testing.T) {
	root := t.TempDir()
	layout := catalog.Layout{Original: root}
	dir := layout.OriginalDir("dem", "FSC")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evil.zip"), zipBytes(t, map[string]string{"../../evil.txt": "x"}), 0o644))

	_, err := UnzipArchives(layout, []string{"dem"}, []string{"FSC"})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(root, "evil.txt"))
}
