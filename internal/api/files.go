package api

import (
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
)

// FilesHandler serves the mirrored target tree read-only. Dot-prefixed names
// (the lock file, in-flight temp files) and any extra paths listed in hide,
// relative to root, answer 404 and are left out of directory listings.
func FilesHandler(root string, hide ...string) http.Handler {
	h := hiddenFS{fs: http.Dir(root), hide: make(map[string]bool)}
	for _, p := range hide {
		h.hide["/"+strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")] = true
	}
	return http.FileServer(h)
}

// HiddenPath returns p relative to root when p lies inside root.
func HiddenPath(root, p string) (string, bool) {
	if p == "" {
		return "", false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absP)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}

type hiddenFS struct {
	fs   http.FileSystem
	hide map[string]bool
}

func (h hiddenFS) hidden(name string) bool {
	if h.hide[name] {
		return true
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

func (h hiddenFS) Open(name string) (http.File, error) {
	if h.hidden(name) {
		return nil, fs.ErrNotExist
	}
	f, err := h.fs.Open(name)
	if err != nil {
		return nil, err
	}
	return hiddenFile{File: f, dir: strings.TrimSuffix(name, "/"), fs: h}, nil
}

type hiddenFile struct {
	http.File
	dir string
	fs  hiddenFS
}

func (f hiddenFile) Readdir(count int) ([]fs.FileInfo, error) {
	infos, err := f.File.Readdir(count)
	kept := infos[:0]
	for _, fi := range infos {
		if !f.fs.hidden(f.dir + "/" + fi.Name()) {
			kept = append(kept, fi)
		}
	}
	return kept, err
}
