package pipeline

import "bookdigest/internal/core"

// LoaderFunc adapts a plain load function to the BookmarkLoader interface.
type LoaderFunc func(path string) ([]core.Bookmark, int, error)

func (f LoaderFunc) Load(path string) ([]core.Bookmark, int, error) {
	return f(path)
}
