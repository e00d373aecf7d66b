package block

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func osReadFileMissing() ([]byte, error) {
	return os.ReadFile(filepath.Join(os.TempDir(), "gluster-block-meta-test-does-not-exist"))
}

func TestParseRoundTrip(t *testing.T) {
	header := SerializeHeader("vol0", "gbid-1", 1073741824, 3)
	hosts := SerializeHost("10.0.0.1", ConfigSuccess) +
		SerializeHost("10.0.0.2", ConfigSuccess) +
		SerializeHost("10.0.0.3", ConfigFail)
	entry := SerializeEntryCreate(EntryCreateSuccess)

	m := Parse("block0", []byte(header+hosts+entry))

	assert.Equal(t, "vol0", m.Volume)
	assert.Equal(t, "gbid-1", m.Gbid)
	assert.Equal(t, uint64(1073741824), m.Size)
	assert.Equal(t, uint32(3), m.Mpath)
	assert.Equal(t, EntryCreateSuccess, m.EntryCreate)
	require.Len(t, m.Hosts, 3)
	assert.Equal(t, "10.0.0.1", m.Hosts[0].Addr)
	assert.Equal(t, ConfigSuccess, m.Hosts[0].Status)
	assert.Equal(t, ConfigFail, m.Hosts[2].Status)
}

func TestParseDuplicateAddrSupersedesButKeepsPosition(t *testing.T) {
	data := SerializeHeader("vol0", "gbid-1", 10, 2) +
		SerializeHost("h1", ConfigInProgress) +
		SerializeHost("h2", ConfigInProgress) +
		SerializeHost("h1", ConfigSuccess) +
		SerializeHost("h2", ConfigFail)

	m := Parse("block0", []byte(data))

	require.Len(t, m.Hosts, 2)
	assert.Equal(t, "h1", m.Hosts[0].Addr)
	assert.Equal(t, ConfigSuccess, m.Hosts[0].Status)
	assert.Equal(t, "h2", m.Hosts[1].Addr)
	assert.Equal(t, ConfigFail, m.Hosts[1].Status)
}

func TestParseDropsMalformedAndUnknownStatusLines(t *testing.T) {
	data := "VOLUME: vol0\nnot-a-kv-line\nh1: NOTASTATUS\nh2: CONFIGSUCCESS\n"

	m := Parse("block0", []byte(data))

	require.Len(t, m.Hosts, 1)
	assert.Equal(t, "h2", m.Hosts[0].Addr)
}

func TestCountAndAddrsByStatus(t *testing.T) {
	m := &MetaInfo{Mpath: 2, Hosts: []HostEntry{
		{Addr: "h1", Status: ConfigSuccess},
		{Addr: "h2", Status: ConfigSuccess},
		{Addr: "h3", Status: ConfigFail},
	}}

	assert.Equal(t, 2, m.CountByStatus(ConfigSuccess))
	assert.Equal(t, []string{"h1", "h2"}, m.AddrsByStatus(ConfigSuccess))
	assert.True(t, m.Healthy())

	m.Hosts[1].Status = ConfigFail
	assert.False(t, m.Healthy())
}

func TestIsNotFound(t *testing.T) {
	_, err := osReadFileMissing()
	assert.True(t, IsNotFound(err))
}
