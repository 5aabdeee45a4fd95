package asset

import (
	"io"
	"io/fs"

	"github.com/rotisserie/eris"
)

// LoadContext is handed to a loader. It reads the asset's bytes and starts loads of the
// assets it depends on.
type LoadContext struct {
	Path Path

	server *Server
	root   fs.FS
}

// Read returns the whole content of the asset file.
func (lc *LoadContext) Read() ([]byte, error) {
	data, err := fs.ReadFile(lc.root, string(lc.Path))
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", lc.Path)
	}
	return data, nil
}

// Open returns a reader over the asset file; the caller closes it.
func (lc *LoadContext) Open() (io.ReadCloser, error) {
	f, err := lc.root.Open(string(lc.Path))
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", lc.Path)
	}
	return f, nil
}

// LoadDependency starts loading the asset at rel, resolved against the directory of the
// asset being loaded when it starts with "./" or "../".
func LoadDependency[B any](lc *LoadContext, rel string) *Handle[B] {
	return Load[B](lc.server, lc.Path.Resolve(rel).String())
}

// Server returns the server running this load
func (lc *LoadContext) Server() *Server {
	return lc.server
}
