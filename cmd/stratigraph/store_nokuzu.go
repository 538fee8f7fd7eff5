//go:build !cgo

package main

import (
	"errors"

	"github.com/dusk-indust/stratigraph/internal/graph"
)

func openKuzuStore(string) (graph.Store, error) {
	return nil, errors.New("the kuzu store driver needs a cgo build")
}
