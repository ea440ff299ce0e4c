package acquire

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/utils"
)

// EnsureCredentials makes sure path holds a single "username:password" line.
// A missing file is created; a malformed one is rewritten from the given
// values, which is reported through rewritten.
func EnsureCredentials(path, username, password string) (rewritten bool, err error) {
	if utils.FileExists(path) {
		if wellFormed(path) {
			return
		}
		rewritten = true
		log.Warn(logTag+" credentials file malformed, recreating", zap.String("path", path))
	}
	if username == "" || password == "" {
		err = Error.New("no credentials configured for %s", path)
		return
	}
	if err = utils.EnsureDir(filepath.Dir(path)); err != nil {
		return
	}
	err = os.WriteFile(path, []byte(username+":"+password+"\n"), 0o600)
	return
}

func wellFormed(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return false
	}
	user, pass, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
	return ok && user != "" && pass != ""
}
