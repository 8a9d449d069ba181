package stub

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/tari-project/tari-core/model/hotstuff"
)

// messageKey generates a unique fingerprint for the tuple of (sender, receiver, encoded message)
func messageKey(from, to hotstuff.ReplicaID, data []byte) (string, error) {
	hasher := sha3.New256()
	_, err := hasher.Write([]byte(fmt.Sprintf("stubnetwork %s %s", from, to)))
	if err != nil {
		return "", fmt.Errorf("could not write to hasher: %w", err)
	}
	_, err = hasher.Write(data)
	if err != nil {
		return "", fmt.Errorf("could not write to hasher: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
