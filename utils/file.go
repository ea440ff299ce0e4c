package utils

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	FILE_EXT_ZIP = ".zip"
	FILE_EXT_KML = ".kml"
)

var (
	ErrZipSlip = errors.New("zip entry escapes target dir")
)

// 创建目录（已存在时不报错，可并发调用）
func EnsureDir(path string) (err error) {
	err = os.MkdirAll(path, os.ModePerm)
	return
}

func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func DirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

// 获取非空文件的大小，空文件或不存在时返回0
func FileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return 0
	}
	return st.Size()
}

// 列出目录下的子目录名（排序，排除exclude中的名称）
func ListSubDirs(dir string, exclude ...string) (names []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
out:
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, x := range exclude {
			if e.Name() == x {
				continue out
			}
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return
}

// 列出目录下指定后缀的文件（大小写不敏感，排序）
func ListFiles(dir, ext string) (paths []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	ext = strings.ToLower(ext)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return
}

// 原样复制文件
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return
	}
	err = out.Close()
	return
}

// 解压zip到目标目录，返回解压出的文件路径
func Unzip(zipFile, dstDir string) (files []string, err error) {
	r, err := zip.OpenReader(zipFile)
	if err != nil {
		return
	}
	defer r.Close()
	root := filepath.Clean(dstDir) + string(os.PathSeparator)
	for _, f := range r.File {
		path := filepath.Join(dstDir, f.Name)
		if !strings.HasPrefix(path, root) {
			err = fmt.Errorf("%w: %s", ErrZipSlip, f.Name)
			return
		}
		if f.FileInfo().IsDir() {
			if err = EnsureDir(path); err != nil {
				return
			}
			continue
		}
		if err = EnsureDir(filepath.Dir(path)); err != nil {
			return
		}
		if err = extractZipEntry(f, path); err != nil {
			return
		}
		files = append(files, path)
	}
	return
}

func extractZipEntry(f *zip.File, path string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return
	}
	defer rc.Close()
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode()|0o600)
	if err != nil {
		return
	}
	if _, err = io.Copy(out, rc); err != nil {
		out.Close()
		return
	}
	err = out.Close()
	return
}
