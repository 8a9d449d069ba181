package committee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/utils/unittest"
)

func TestStaticCommitteeManager(t *testing.T) {
	ids := unittest.ReplicaIDs(5)
	manager, err := NewStaticCommitteeManager(unittest.AssetFixture(t, ids[:4]))
	require.NoError(t, err)

	committee, err := manager.CurrentCommittee()
	require.NoError(t, err)
	assert.Equal(t, ids[:4], committee.Members())

	require.NoError(t, manager.ReadFromCheckpoint(&mhotstuff.BaseLayerOutput{}))
	committee, err = manager.CurrentCommittee()
	require.NoError(t, err)
	assert.Equal(t, 4, committee.Len())

	require.NoError(t, manager.ReadFromCheckpoint(&mhotstuff.BaseLayerOutput{Committee: ids[1:]}))
	committee, err = manager.CurrentCommittee()
	require.NoError(t, err)
	assert.False(t, committee.Contains(ids[0]))
	assert.True(t, committee.Contains(ids[4]))

	err = manager.ReadFromCheckpoint(&mhotstuff.BaseLayerOutput{Committee: []mhotstuff.ReplicaID{ids[0], ids[0]}})
	assert.Error(t, err)
	committee, err = manager.CurrentCommittee()
	require.NoError(t, err)
	assert.Equal(t, ids[1:], committee.Members())
}

func TestStaticCommitteeManager_EmptyInitialCommittee(t *testing.T) {
	_, err := NewStaticCommitteeManager(unittest.AssetFixture(t, nil))
	assert.Error(t, err)
}
