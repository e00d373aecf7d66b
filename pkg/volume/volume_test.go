package volume

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesLayout(t *testing.T) {
	root := t.TempDir()
	h, err := Open(root, "vol0", "server1")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "vol0", h.Name())
	assert.DirExists(t, filepath.Join(root, "vol0", MetaDir))
	assert.DirExists(t, filepath.Join(root, "vol0", StoreDir))

	exists, err := h.MetaExists("block0")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAppendMetaAndReadBack(t *testing.T) {
	h, err := Open(t.TempDir(), "vol0", "")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.AppendMeta("block0", "VOLUME: vol0"))
	require.NoError(t, h.AppendMeta("block0", "GBID: abc"))

	data, err := h.ReadMeta("block0")
	require.NoError(t, err)
	assert.Equal(t, "VOLUME: vol0\nGBID: abc\n", string(data))

	exists, err := h.MetaExists("block0")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListBlocksSkipsLockFile(t *testing.T) {
	h, err := Open(t.TempDir(), "vol0", "")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.AppendMeta("block0", "VOLUME: vol0"))
	require.NoError(t, h.AppendMeta("block1", "VOLUME: vol0"))

	unlock, err := h.Lock()
	require.NoError(t, err)
	require.NoError(t, unlock.Unlock())

	names, err := h.ListBlocks()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"block0", "block1"}, names)
}

func TestCreateStoreExactSizeAndUnlinkTolerant(t *testing.T) {
	h, err := Open(t.TempDir(), "vol0", "")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.CreateStore("gbid-1", 4096))

	exists, err := h.StoreExists("gbid-1")
	require.NoError(t, err)
	assert.True(t, exists)

	fi, err := os.Stat(h.storePath("gbid-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(4096), fi.Size())

	err = h.CreateStore("gbid-1", 4096)
	assert.Error(t, err, "CreateStore must not silently overwrite an existing backing file")

	require.NoError(t, h.UnlinkStore("gbid-1"))
	require.NoError(t, h.UnlinkStore("gbid-1"), "UnlinkStore must tolerate a missing file")
}

func TestLockExcludesConcurrentHolder(t *testing.T) {
	h, err := Open(t.TempDir(), "vol0", "")
	require.NoError(t, err)
	defer h.Close()

	unlock, err := h.Lock()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		u2, err := h.Lock()
		require.NoError(t, err)
		require.NoError(t, u2.Unlock())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock was acquired while the first was still held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, unlock.Unlock())
	<-done
}
