package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syldej/gluster-block/pkg/block"
	"github.com/syldej/gluster-block/pkg/gberrors"
	"github.com/syldej/gluster-block/pkg/volume"
)

func TestAuditAndRewindRejectsMpathExceedingHosts(t *testing.T) {
	v, err := volume.Open(t.TempDir(), "vol0", "")
	require.NoError(t, err)

	_, err = auditAndRewind(v, "block0", 3, []string{"h1", "h2"}, "vol0", "", "gbid-1", 10)
	var target *gberrors.ErrMultipathExceedsHosts
	assert.ErrorAs(t, err, &target)
}

func TestAuditAndRewindNoSpareAvailable(t *testing.T) {
	v, err := volume.Open(t.TempDir(), "vol0", "")
	require.NoError(t, err)
	require.NoError(t, v.AppendMeta("block0", block.SerializeHeader("vol0", "gbid-1", 10, 2)))
	require.NoError(t, v.AppendMeta("block0", block.SerializeHost("h1", block.ConfigSuccess)))
	require.NoError(t, v.AppendMeta("block0", block.SerializeHost("h2", block.ConfigFail)))

	_, err = auditAndRewind(v, "block0", 2, []string{"h1", "h2"}, "vol0", "", "gbid-1", 10)
	var target *gberrors.ErrNoSpareNodes
	if assert.ErrorAs(t, err, &target) {
		assert.Equal(t, 1, target.Need)
		assert.Equal(t, 0, target.Spare)
	}
}

func TestAuditAndRewindAlreadyHealthyIsNoop(t *testing.T) {
	v, err := volume.Open(t.TempDir(), "vol0", "")
	require.NoError(t, err)
	require.NoError(t, v.AppendMeta("block0", block.SerializeHeader("vol0", "gbid-1", 10, 2)))
	require.NoError(t, v.AppendMeta("block0", block.SerializeHost("h1", block.ConfigSuccess)))
	require.NoError(t, v.AppendMeta("block0", block.SerializeHost("h2", block.ConfigSuccess)))

	_, err = auditAndRewind(v, "block0", 2, []string{"h1", "h2"}, "vol0", "", "gbid-1", 10)
	assert.NoError(t, err)
}
