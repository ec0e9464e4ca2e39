// Package fileserver implements the file responder: safe path resolution
// under a document root, a size cap, cache consultation, and content
// serving with X-Cache HIT/MISS/NONE markers.
package fileserver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperreactor/reactord/internal/cache"
	"github.com/hyperreactor/reactord/internal/dirlisting"
	"github.com/hyperreactor/reactord/internal/mimetype"
	"github.com/hyperreactor/reactord/internal/pathcmp"
	"github.com/hyperreactor/reactord/internal/rlog"
)

// Result is a fully-built response body and metadata, independent of wire
// serialization.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
	CacheHeader string // "HIT", "MISS", "NONE", or "" when not applicable
}

// maxCacheableBytes bounds what the responder will insert into the cache
// on a miss; bigger files are read and served but never cached.
const maxCacheableBytes = 1 << 20

// Responder resolves request paths under a canonicalized document root.
type Responder struct {
	root        string
	indexFile   string
	maxFileSize int64
	cache       *cache.Cache
	logger      *rlog.Logger
}

// New canonicalizes documentRoot (resolving symlinks) and returns a
// Responder, or an error if the root does not exist or isn't a directory.
// Callers treat that as fatal at startup.
func New(documentRoot, indexFile string, maxFileSize int64, c *cache.Cache, logger *rlog.Logger) (*Responder, error) {
	abs, err := filepath.Abs(documentRoot)
	if err != nil {
		return nil, err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}
	if logger == nil {
		logger = rlog.Default()
	}
	return &Responder{
		root:        real,
		indexFile:   indexFile,
		maxFileSize: maxFileSize,
		cache:       c,
		logger:      logger,
	}, nil
}

// Handle serves requestPath (the raw URL path, leading slash included).
func (r *Responder) Handle(requestPath string) Result {
	rel := strings.TrimPrefix(requestPath, "/")
	if rel == "" {
		rel = r.indexFile
	}

	candidate := filepath.Join(r.root, filepath.FromSlash(rel))
	if !r.withinRoot(candidate) {
		return forbiddenResult()
	}

	resolved := candidate
	if real, err := filepath.EvalSymlinks(candidate); err == nil {
		resolved = real
		if !r.withinRoot(resolved) {
			return forbiddenResult()
		}
	} else if !os.IsNotExist(err) {
		return internalErrorResult()
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return notFoundResult()
		}
		return internalErrorResult()
	}

	if info.IsDir() {
		defaultPath := filepath.Join(resolved, r.indexFile)
		if dinfo, derr := os.Stat(defaultPath); derr == nil && dinfo.Mode().IsRegular() {
			resolved, info = defaultPath, dinfo
		} else {
			return r.renderDirectory(requestPath, resolved)
		}
	}

	if !info.Mode().IsRegular() {
		return forbiddenResult()
	}
	if info.Size() > r.maxFileSize {
		return forbiddenResult()
	}

	if entry, ok := r.cache.Get(resolved); ok {
		return Result{Status: 200, ContentType: entry.ContentType, Body: entry.Bytes, CacheHeader: "HIT"}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return internalErrorResult()
	}

	contentType := mimetype.ByExtension(resolved)
	if int64(len(data)) < maxCacheableBytes {
		r.cache.Put(resolved, data, contentType)
	}
	return Result{Status: 200, ContentType: contentType, Body: data, CacheHeader: "MISS"}
}

func (r *Responder) renderDirectory(requestPath, dir string) Result {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return internalErrorResult()
	}
	return Result{
		Status:      200,
		ContentType: "text/html; charset=utf-8",
		Body:        dirlisting.Render(requestPath, entries),
		CacheHeader: "NONE",
	}
}

// withinRoot reports whether p lies at or under r.root. p need not exist.
func (r *Responder) withinRoot(p string) bool {
	if p == r.root {
		return true
	}
	return pathcmp.HasPrefix(p, r.root+string(filepath.Separator))
}

func forbiddenResult() Result {
	return Result{Status: 403, ContentType: "text/html; charset=utf-8", Body: []byte("<html><body><h1>403 Forbidden</h1></body></html>")}
}

func notFoundResult() Result {
	return Result{Status: 404, ContentType: "text/html; charset=utf-8", Body: []byte("<html><body><h1>404 Not Found</h1></body></html>")}
}

func internalErrorResult() Result {
	return Result{Status: 500, ContentType: "text/html; charset=utf-8", Body: []byte("<html><body><h1>500 Internal Server Error</h1></body></html>")}
}
