package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/do/v2"
	"github.com/vreid/duel/internal/pkg/common"
	bolt "go.etcd.io/bbolt"

	log "github.com/sirupsen/logrus"
)

var (
	ErrAssetExists     = errors.New("asset already exists")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrNotOwner        = errors.New("sender does not own asset")
	ErrUnauthorized    = errors.New("signer is not authorized to move asset")
	ErrReceiptDisabled = errors.New("recipient does not accept direct transfers")
	ErrInvalidQuantity = errors.New("collectibles move one at a time")
)

var enabled = []byte{1}

type LedgerService struct {
	DatabaseService *common.DatabaseService

	Custodian Custodian
}

func NewLedgerService(i do.Injector) (*LedgerService, error) {
	databaseService := do.MustInvoke[*common.DatabaseService](i)
	custodian := do.MustInvoke[Custodian](i)

	result := &LedgerService{
		DatabaseService: databaseService,
		Custodian:       custodian,
	}

	echoService, err := do.Invoke[*common.EchoService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create echo service: %w", err)
	}

	echoService.Register(result.RegisterRoutes)

	return result, nil
}

func (s *LedgerService) Mint(tx *bolt.Tx, descriptor Descriptor, owner Address) (AssetID, error) {
	assets, err := common.Bucket(tx, common.LedgerAssetsBucket)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	id := descriptor.ID()
	if assets.Get([]byte(id)) != nil {
		return "", fmt.Errorf("%w: %s", ErrAssetExists, id)
	}

	err = putAsset(assets, Asset{ID: id, Descriptor: descriptor, Owner: owner})
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"asset": id,
		"owner": owner,
	}).Debug("asset minted")

	return id, nil
}

func (s *LedgerService) Resolve(
	tx *bolt.Tx,
	issuer Address,
	collection string,
	item string,
	version uint64) (AssetID, error) {
	descriptor := Descriptor{
		Issuer:     issuer,
		Collection: collection,
		Item:       item,
		Version:    version,
	}

	asset, err := s.Lookup(tx, descriptor.ID())
	if err != nil {
		return "", err
	}

	return asset.ID, nil
}

func (s *LedgerService) Lookup(tx *bolt.Tx, id AssetID) (*Asset, error) {
	assets, err := common.Bucket(tx, common.LedgerAssetsBucket)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	raw := assets.Get([]byte(id))
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}

	var asset Asset

	err = json.Unmarshal(raw, &asset)
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset %s: %w", id, err)
	}

	return &asset, nil
}

func (s *LedgerService) OwnerOf(tx *bolt.Tx, id AssetID) (Address, error) {
	asset, err := s.Lookup(tx, id)
	if err != nil {
		return "", err
	}

	return asset.Owner, nil
}

//nolint:cyclop
func (s *LedgerService) Transfer(tx *bolt.Tx, signer Signer, id AssetID, from, to Address, quantity uint64) error {
	if quantity != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	asset, err := s.Lookup(tx, id)
	if err != nil {
		return err
	}

	if asset.Owner != from {
		return fmt.Errorf("%w: %s is held by %s, not %s", ErrNotOwner, id, asset.Owner, from)
	}

	if signer == nil || signer.Address() != from {
		return fmt.Errorf("%w: %s", ErrUnauthorized, id)
	}

	custodial, err := s.Custodian.IsCustodial(tx, from)
	if err != nil {
		return fmt.Errorf("failed to look up sender: %w", err)
	}

	if custodial {
		err = s.Custodian.Verify(tx, signer)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
	}

	custodial, err = s.Custodian.IsCustodial(tx, to)
	if err != nil {
		return fmt.Errorf("failed to look up recipient: %w", err)
	}

	if custodial {
		receipt, err := common.Bucket(tx, common.LedgerReceiptBucket)
		if err != nil {
			return err //nolint:wrapcheck
		}

		if receipt.Get([]byte(to)) == nil {
			return fmt.Errorf("%w: %s", ErrReceiptDisabled, to)
		}
	}

	assets, err := common.Bucket(tx, common.LedgerAssetsBucket)
	if err != nil {
		return err //nolint:wrapcheck
	}

	asset.Owner = to

	err = putAsset(assets, *asset)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"asset": id,
		"from":  from,
		"to":    to,
	}).Debug("asset transferred")

	return nil
}

func (s *LedgerService) EnableDirectReceipt(tx *bolt.Tx, identity Address) error {
	receipt, err := common.Bucket(tx, common.LedgerReceiptBucket)
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = receipt.Put([]byte(identity), enabled)
	if err != nil {
		return fmt.Errorf("failed to enable direct receipt for %s: %w", identity, err)
	}

	return nil
}

func (s *LedgerService) Holdings(tx *bolt.Tx, owner Address) ([]Asset, error) {
	assets, err := common.Bucket(tx, common.LedgerAssetsBucket)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	result := []Asset{}

	err = assets.ForEach(func(k, v []byte) error {
		var asset Asset

		err := json.Unmarshal(v, &asset)
		if err != nil {
			return fmt.Errorf("failed to decode asset %s: %w", k, err)
		}

		if asset.Owner == owner {
			result = append(result, asset)
		}

		return nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return result, nil
}

func (s *LedgerService) Owner(id AssetID) (Address, error) {
	var owner Address

	err := s.DatabaseService.DB.View(func(tx *bolt.Tx) error {
		var err error

		owner, err = s.OwnerOf(tx, id)

		return err
	})

	return owner, err //nolint:wrapcheck
}

func (s *LedgerService) Assets(owner Address) ([]Asset, error) {
	var result []Asset

	err := s.DatabaseService.DB.View(func(tx *bolt.Tx) error {
		var err error

		result, err = s.Holdings(tx, owner)

		return err
	})

	return result, err //nolint:wrapcheck
}

func putAsset(assets *bolt.Bucket, asset Asset) error {
	raw, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to encode asset %s: %w", asset.ID, err)
	}

	err = assets.Put([]byte(asset.ID), raw)
	if err != nil {
		return fmt.Errorf("failed to store asset %s: %w", asset.ID, err)
	}

	return nil
}
