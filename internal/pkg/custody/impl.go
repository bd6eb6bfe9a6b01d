package custody

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/do/v2"
	"github.com/vreid/duel/internal/pkg/common"
	"github.com/vreid/duel/internal/pkg/ledger"
	bolt "go.etcd.io/bbolt"

	log "github.com/sirupsen/logrus"
)

const secretSize = 32

var (
	ErrIdentityExists   = errors.New("custodial identity already exists")
	ErrIdentityNotFound = errors.New("custodial identity not found")
	ErrNotAnAuthority   = errors.New("signer is not a capability authority")
	ErrAuthorityInvalid = errors.New("authority does not match capability")
)

type CustodyService struct {
	DatabaseService *common.DatabaseService
}

func NewCustodyService(i do.Injector) (*CustodyService, error) {
	databaseService := do.MustInvoke[*common.DatabaseService](i)

	return &CustodyService{
		DatabaseService: databaseService,
	}, nil
}

// DeriveAddress returns the address a custodial identity created by creator
// with the given seed will have.
func DeriveAddress(creator ledger.Address, seed []byte) ledger.Address {
	h := sha256.New()
	h.Write([]byte(creator))
	h.Write([]byte{0})
	h.Write(seed)

	return ledger.Address(hex.EncodeToString(h.Sum(nil)))
}

func (s *CustodyService) CreateCustodialIdentity(
	tx *bolt.Tx,
	creator ledger.Address,
	seed []byte) (ledger.Address, *Capability, error) {
	identities, err := common.Bucket(tx, common.CustodyIdentityBucket)
	if err != nil {
		return "", nil, err //nolint:wrapcheck
	}

	address := DeriveAddress(creator, seed)
	if identities.Get([]byte(address)) != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrIdentityExists, address)
	}

	secret := make([]byte, secretSize)

	_, err = rand.Read(secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate capability secret: %w", err)
	}

	capabilityID, err := uuid.NewRandom()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate capability ID: %w", err)
	}

	secretHash := sha256.Sum256(secret)

	raw, err := json.Marshal(identityRecord{
		CapabilityID: capabilityID,
		Creator:      creator,
		SecretHash:   hex.EncodeToString(secretHash[:]),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode custodial identity: %w", err)
	}

	err = identities.Put([]byte(address), raw)
	if err != nil {
		return "", nil, fmt.Errorf("failed to store custodial identity: %w", err)
	}

	log.WithFields(log.Fields{
		"address":    address,
		"creator":    creator,
		"capability": capabilityID,
	}).Debug("custodial identity created")

	return address, &Capability{
		id:      capabilityID,
		address: address,
		secret:  secret,
	}, nil
}

func (s *CustodyService) AddressOf(capability *Capability) ledger.Address {
	return capability.address
}

func (s *CustodyService) AuthorityFrom(capability *Capability) *Authority {
	secret := make([]byte, len(capability.secret))
	copy(secret, capability.secret)

	return &Authority{
		address: capability.address,
		secret:  secret,
	}
}

func (s *CustodyService) IsCustodial(tx *bolt.Tx, address ledger.Address) (bool, error) {
	identities, err := common.Bucket(tx, common.CustodyIdentityBucket)
	if err != nil {
		return false, err //nolint:wrapcheck
	}

	return identities.Get([]byte(address)) != nil, nil
}

func (s *CustodyService) Verify(tx *bolt.Tx, signer ledger.Signer) error {
	authority, ok := signer.(*Authority)
	if !ok {
		return ErrNotAnAuthority
	}

	identities, err := common.Bucket(tx, common.CustodyIdentityBucket)
	if err != nil {
		return err //nolint:wrapcheck
	}

	raw := identities.Get([]byte(authority.address))
	if raw == nil {
		return fmt.Errorf("%w: %s", ErrIdentityNotFound, authority.address)
	}

	var record identityRecord

	err = json.Unmarshal(raw, &record)
	if err != nil {
		return fmt.Errorf("failed to decode custodial identity: %w", err)
	}

	expected, err := hex.DecodeString(record.SecretHash)
	if err != nil {
		return fmt.Errorf("failed to decode secret hash: %w", err)
	}

	actual := sha256.Sum256(authority.secret)
	if len(authority.secret) == 0 || subtle.ConstantTimeCompare(expected, actual[:]) != 1 {
		return ErrAuthorityInvalid
	}

	return nil
}
