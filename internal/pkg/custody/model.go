package custody

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vreid/duel/internal/pkg/ledger"
)

// Capability authorizes outgoing transfers from one custodial identity. It is
// owned by exactly one game record and never leaves it; the JSON form exists
// only so the record can be persisted.
type Capability struct {
	id      uuid.UUID
	address ledger.Address
	secret  []byte
}

type storedCapability struct {
	ID      uuid.UUID      `json:"id"`
	Address ledger.Address `json:"address"`
	Secret  string         `json:"secret"`
}

func (c *Capability) ID() uuid.UUID {
	return c.id
}

func (c *Capability) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck
	return json.Marshal(storedCapability{
		ID:      c.id,
		Address: c.address,
		Secret:  hex.EncodeToString(c.secret),
	})
}

func (c *Capability) UnmarshalJSON(data []byte) error {
	var stored storedCapability

	err := json.Unmarshal(data, &stored)
	if err != nil {
		return fmt.Errorf("failed to decode capability: %w", err)
	}

	secret, err := hex.DecodeString(stored.Secret)
	if err != nil {
		return fmt.Errorf("failed to decode capability secret: %w", err)
	}

	c.id = stored.ID
	c.address = stored.Address
	c.secret = secret

	return nil
}

// Authority is the short-lived signing context built from a Capability for
// the duration of one operation.
type Authority struct {
	address ledger.Address
	secret  []byte
}

func (a *Authority) Address() ledger.Address {
	return a.address
}

// Release wipes the authority's copy of the secret. A released authority no
// longer verifies.
func (a *Authority) Release() {
	for idx := range a.secret {
		a.secret[idx] = 0
	}

	a.secret = nil
}

type identityRecord struct {
	CapabilityID uuid.UUID      `json:"capability_id"`
	Creator      ledger.Address `json:"creator"`
	SecretHash   string         `json:"secret_hash"`
}
