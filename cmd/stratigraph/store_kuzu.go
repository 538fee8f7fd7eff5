//go:build cgo

package main

import "github.com/dusk-indust/stratigraph/internal/graph"

func openKuzuStore(path string) (graph.Store, error) {
	return graph.NewKuzuFileStore(path)
}
