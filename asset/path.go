package asset

import (
	"hash/fnv"
	"path"
	"strconv"
	"strings"
)

// Path is a normalized, root-relative virtual asset path using forward slashes.
type Path string

// NewPath normalizes p: backslashes become slashes, the path is cleaned and any leading
// "./" or "/" is dropped.
func NewPath(p string) Path {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return Path(strings.TrimPrefix(p, "/"))
}

// Resolve interprets rel against the directory of p when rel starts with "./" or "../";
// any other rel is taken as root-relative.
func (p Path) Resolve(rel string) Path {
	if strings.HasPrefix(rel, "./") || strings.HasPrefix(rel, "../") {
		return NewPath(path.Join(path.Dir(string(p)), rel))
	}
	return NewPath(rel)
}

// Ext returns the file extension, including the dot
func (p Path) Ext() string {
	return path.Ext(string(p))
}

func (p Path) String() string {
	return string(p)
}

// Id identifies an asset within the store of its type.
type Id uint64

// IdOf hashes a normalized path with FNV-1a.
func IdOf(p Path) Id {
	h := fnv.New64a()
	h.Write([]byte(p))
	return Id(h.Sum64())
}

func (id Id) String() string {
	return strconv.FormatUint(uint64(id), 16)
}
