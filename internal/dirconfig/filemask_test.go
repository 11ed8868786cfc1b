package dirconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMaskBlobRoundTrip(t *testing.T) {
	groups := []FileMaskGroup{
		{Masks: []FileMaskEntry{
			{Patterns: []MaskPattern{{Pattern: "*.txt"}, {Pattern: "*.tmp", Negative: true}}},
		}},
		{Masks: []FileMaskEntry{
			{Patterns: []MaskPattern{{Pattern: "data_*"}}},
		}},
	}
	blob := EncodeFileMaskBlob(groups)
	decoded, err := DecodeFileMaskBlob(blob)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Len(t, decoded[0], 2)
	assert.Equal(t, "*.txt", decoded[0][0].Pattern)
	assert.False(t, decoded[0][0].Negative)
	assert.Equal(t, "*.tmp", decoded[0][1].Pattern)
	assert.True(t, decoded[0][1].Negative)
	require.Len(t, decoded[1], 1)
	assert.Equal(t, "data_*", decoded[1][0].Pattern)
}

func TestFileMaskBlobEmpty(t *testing.T) {
	blob := EncodeFileMaskBlob(nil)
	decoded, err := DecodeFileMaskBlob(blob)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestComputeDirIDStableAcrossReload(t *testing.T) {
	id1 := ComputeDirID("/data/in", "incoming")
	id2 := ComputeDirID("/data/in", "incoming")
	assert.Equal(t, id1, id2)

	id3 := ComputeDirID("/data/in", "other-alias")
	assert.NotEqual(t, id1, id3)
}
