package committee

import (
	"fmt"
	"sync"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// StaticCommitteeManager keeps the committee named by the most recent
// checkpoint. Checkpoints without a committee keep the current one, which
// starts out as the asset's initial committee.
type StaticCommitteeManager struct {
	mu        sync.RWMutex
	committee *mhotstuff.Committee
}

var _ hotstuff.CommitteeManager = (*StaticCommitteeManager)(nil)

// NewStaticCommitteeManager creates a manager starting with the initial
// committee of asset.
func NewStaticCommitteeManager(asset *mhotstuff.AssetDefinition) (*StaticCommitteeManager, error) {
	committee, err := mhotstuff.NewCommittee(asset.Committee)
	if err != nil {
		return nil, fmt.Errorf("invalid initial committee: %w", err)
	}
	return &StaticCommitteeManager{committee: committee}, nil
}

func (m *StaticCommitteeManager) CurrentCommittee() (*mhotstuff.Committee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committee, nil
}

func (m *StaticCommitteeManager) ReadFromCheckpoint(checkpoint *mhotstuff.BaseLayerOutput) error {
	if len(checkpoint.Committee) == 0 {
		return nil
	}
	committee, err := mhotstuff.NewCommittee(checkpoint.Committee)
	if err != nil {
		return fmt.Errorf("invalid checkpoint committee: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committee = committee
	return nil
}
