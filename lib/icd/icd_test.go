package icd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	require.Equal(t, "Neoplasia maligna da mama", Describe("C50"))
	require.Equal(t, "Neoplasia maligna da próstata", Describe("C61"))
	require.Equal(t, "Neoplasia maligna da mama", Describe("c50"))
	require.Equal(t, "", Describe("Z99"))
}

func TestLabel(t *testing.T) {
	require.Equal(t, "C50 – Neoplasia maligna da mama", Label("C50"))
	require.Equal(t, "Z99", Label("Z99"))
}

func TestCodes(t *testing.T) {
	codes := Codes()
	require.Len(t, codes, 109)
	require.Equal(t, "C00", codes[0])
	require.Equal(t, "D48", codes[len(codes)-1])
}

func TestSearch(t *testing.T) {
	require.Contains(t, Search("mama"), "C50")
	require.Contains(t, Search("mama"), "D05")
	require.Contains(t, Search("PRÓSTATA"), "C61")
	require.Empty(t, Search("rodovia"))
}
