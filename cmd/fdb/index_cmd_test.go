package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluree/flurecore/internal/flake"
)

func TestIndexNameCoversAllFamilies(t *testing.T) {
	want := map[flake.Index]string{
		flake.SPOT: "spot",
		flake.POST: "post",
		flake.OPST: "opst",
		flake.TSPO: "tspo",
	}
	for idx, name := range want {
		require.Equal(t, name, indexName(idx))
	}
}
