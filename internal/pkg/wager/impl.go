package wager

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/samber/do/v2"
	"github.com/vreid/duel/internal/pkg/common"
	"github.com/vreid/duel/internal/pkg/custody"
	"github.com/vreid/duel/internal/pkg/events"
	"github.com/vreid/duel/internal/pkg/ledger"
	bolt "go.etcd.io/bbolt"

	log "github.com/sirupsen/logrus"
)

// AssetLedger resolves descriptors and moves assets between principals.
type AssetLedger interface {
	Resolve(tx *bolt.Tx, issuer ledger.Address, collection, item string, version uint64) (ledger.AssetID, error)
	Transfer(tx *bolt.Tx, signer ledger.Signer, id ledger.AssetID, from, to ledger.Address, quantity uint64) error
	EnableDirectReceipt(tx *bolt.Tx, identity ledger.Address) error
}

// Issuer mints custodial identities and the capabilities that control them.
type Issuer interface {
	CreateCustodialIdentity(tx *bolt.Tx, creator ledger.Address, seed []byte) (ledger.Address, *custody.Capability, error)
	AddressOf(capability *custody.Capability) ledger.Address
	AuthorityFrom(capability *custody.Capability) *custody.Authority
}

type WagerService struct {
	DatabaseService *common.DatabaseService

	Ledger AssetLedger
	Issuer Issuer

	EventSink *events.Sink
}

func NewWagerService(i do.Injector) (*WagerService, error) {
	databaseService := do.MustInvoke[*common.DatabaseService](i)
	ledgerService := do.MustInvoke[*ledger.LedgerService](i)
	custodyService := do.MustInvoke[*custody.CustodyService](i)
	eventSink := do.MustInvoke[*events.Sink](i)

	result := &WagerService{
		DatabaseService: databaseService,

		Ledger: ledgerService,
		Issuer: custodyService,

		EventSink: eventSink,
	}

	echoService, err := do.Invoke[*common.EchoService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create echo service: %w", err)
	}

	echoService.Register(result.RegisterRoutes)

	return result, nil
}

func (s *WagerService) Initialize(caller ledger.Address, args InitializeArgs) (*GameView, error) {
	var game *Game

	err := s.update(func(tx *bolt.Tx, games *bolt.Bucket) error {
		existing, err := loadGame(games, caller)
		if err != nil {
			return err
		}

		err = AssertDoesNotExist(existing)
		if err != nil {
			return err
		}

		_, capability, err := s.Issuer.CreateCustodialIdentity(tx, caller, []byte(escrowSeed))
		if err != nil {
			return fmt.Errorf("failed to create escrow: %w", err)
		}

		escrow := s.Issuer.AddressOf(capability)

		err = s.Ledger.EnableDirectReceipt(tx, escrow)
		if err != nil {
			return fmt.Errorf("failed to open escrow: %w", err)
		}

		stake := ledger.Descriptor{
			Issuer:     args.Issuer,
			Collection: args.Collection,
			Item:       args.Item,
			Version:    args.Version,
		}

		err = s.deposit(tx, caller, escrow, []ledger.Descriptor{stake})
		if err != nil {
			return err
		}

		game = &Game{
			Creator:          caller,
			CreatorAsset:     stake,
			JoinRequirement:  args.JoinRequirement,
			Opponent:         nil,
			OpponentAssets:   []ledger.Descriptor{},
			Active:           true,
			Claimed:          false,
			Outcome:          nil,
			Escrow:           escrow,
			EscrowCapability: capability,
		}

		return saveGame(games, game)
	})
	if err != nil {
		return nil, reject("initialize", caller, err)
	}

	s.emit(events.New(events.GameCreated, caller, caller, map[string]string{
		"escrow":           game.Escrow.String(),
		"join_requirement": strconv.FormatUint(game.JoinRequirement, 10),
	}))

	return game.View(), nil
}

func (s *WagerService) Cancel(caller ledger.Address) (*GameView, error) {
	var game *Game

	err := s.update(func(tx *bolt.Tx, games *bolt.Bucket) error {
		var err error

		game, err = loadGame(games, caller)
		if err != nil {
			return err
		}

		err = check(
			func() error { return AssertExists(game) },
			func() error { return AssertActive(game) },
			func() error { return AssertHasNoOpponent(game) },
		)
		if err != nil {
			return err
		}

		err = s.release(tx, game, caller, []ledger.Descriptor{game.CreatorAsset})
		if err != nil {
			return err
		}

		game.Active = false

		return saveGame(games, game)
	})
	if err != nil {
		return nil, reject("cancel", caller, err)
	}

	s.emit(events.New(events.GameCancelled, caller, caller, nil))

	return game.View(), nil
}

func (s *WagerService) Join(caller, creator ledger.Address, args JoinArgs) (*GameView, error) {
	err := AssertEqualArity(args)
	if err != nil {
		return nil, reject("join", caller, err)
	}

	stake := args.Descriptors()

	var game *Game

	err = s.update(func(tx *bolt.Tx, games *bolt.Bucket) error {
		var err error

		game, err = loadGame(games, creator)
		if err != nil {
			return err
		}

		err = check(
			func() error { return AssertExists(game) },
			func() error { return AssertActive(game) },
			func() error { return AssertHasNoOpponent(game) },
			func() error { return AssertJoinRequirementMet(game, len(stake)) },
		)
		if err != nil {
			return err
		}

		err = s.deposit(tx, caller, game.Escrow, stake)
		if err != nil {
			return err
		}

		opponent := caller
		game.Opponent = &opponent
		game.OpponentAssets = stake

		return saveGame(games, game)
	})
	if err != nil {
		return nil, reject("join", caller, err)
	}

	s.emit(events.New(events.GameJoined, creator, caller, map[string]string{
		"staked": strconv.Itoa(len(stake)),
	}))

	return game.View(), nil
}

func (s *WagerService) Play(caller ledger.Address, args PlayArgs) (*GameView, error) {
	var game *Game

	err := s.update(func(_ *bolt.Tx, games *bolt.Bucket) error {
		var err error

		game, err = loadGame(games, caller)
		if err != nil {
			return err
		}

		err = check(
			func() error { return AssertExists(game) },
			func() error { return AssertActive(game) },
			func() error { return AssertHasOpponent(game) },
		)
		if err != nil {
			return err
		}

		outcome := args.Outcome
		game.Outcome = &outcome
		game.Active = false

		return saveGame(games, game)
	})
	if err != nil {
		return nil, reject("play", caller, err)
	}

	s.emit(events.New(events.GamePlayed, caller, caller, map[string]string{
		"creator_won": strconv.FormatBool(args.Outcome),
	}))

	return game.View(), nil
}

// Claim settles a finished game. One claimed flag covers both players, and
// the outcome is not required to be set: whoever claims first consumes the
// flag, and a claim after cancel succeeds without moving anything.
func (s *WagerService) Claim(caller, creator ledger.Address) (*GameView, error) {
	var (
		game   *Game
		payout bool
	)

	err := s.update(func(tx *bolt.Tx, games *bolt.Bucket) error {
		var err error

		game, err = loadGame(games, creator)
		if err != nil {
			return err
		}

		err = check(
			func() error { return AssertExists(game) },
			func() error { return AssertNotActive(game) },
			func() error { return AssertNotClaimed(game) },
			func() error { return AssertIsPlayer(game, caller) },
		)
		if err != nil {
			return err
		}

		isCreator := caller == creator
		isOpponent := game.Opponent != nil && *game.Opponent == caller

		if game.Outcome != nil {
			payout = (isCreator && *game.Outcome) || (isOpponent && !*game.Outcome)
		}

		if payout {
			pool := make([]ledger.Descriptor, 0, 1+len(game.OpponentAssets))
			pool = append(pool, game.CreatorAsset)
			pool = append(pool, game.OpponentAssets...)

			err = s.release(tx, game, caller, pool)
			if err != nil {
				return err
			}
		}

		game.Claimed = true

		return saveGame(games, game)
	})
	if err != nil {
		return nil, reject("claim", caller, err)
	}

	s.emit(events.New(events.GameClaimed, creator, caller, map[string]string{
		"paid_out": strconv.FormatBool(payout),
	}))

	return game.View(), nil
}

func (s *WagerService) Game(creator ledger.Address) (*GameView, error) {
	var game *Game

	err := s.DatabaseService.DB.View(func(tx *bolt.Tx) error {
		games, err := common.Bucket(tx, common.WagerGamesBucket)
		if err != nil {
			return err //nolint:wrapcheck
		}

		game, err = loadGame(games, creator)
		if err != nil {
			return err
		}

		return AssertExists(game)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return game.View(), nil
}

// deposit moves each descriptor, in order, from a player into escrow.
func (s *WagerService) deposit(tx *bolt.Tx, from, escrow ledger.Address, stake []ledger.Descriptor) error {
	signer := ledger.Account(from)

	for _, descriptor := range stake {
		id, err := s.Ledger.Resolve(tx, descriptor.Issuer, descriptor.Collection, descriptor.Item, descriptor.Version)
		if err != nil {
			return fmt.Errorf("failed to resolve stake: %w", err)
		}

		err = s.Ledger.Transfer(tx, signer, id, from, escrow, 1)
		if err != nil {
			return fmt.Errorf("failed to stake %s: %w", id, err)
		}
	}

	return nil
}

// release moves each descriptor, in order, out of the game's escrow. The
// authority lives only as long as this call.
func (s *WagerService) release(tx *bolt.Tx, game *Game, to ledger.Address, pool []ledger.Descriptor) error {
	authority := s.Issuer.AuthorityFrom(game.EscrowCapability)
	defer authority.Release()

	escrow := s.Issuer.AddressOf(game.EscrowCapability)

	for _, descriptor := range pool {
		id, err := s.Ledger.Resolve(tx, descriptor.Issuer, descriptor.Collection, descriptor.Item, descriptor.Version)
		if err != nil {
			return fmt.Errorf("failed to resolve escrowed asset: %w", err)
		}

		err = s.Ledger.Transfer(tx, authority, id, escrow, to, 1)
		if err != nil {
			return fmt.Errorf("failed to release %s: %w", id, err)
		}
	}

	return nil
}

func (s *WagerService) update(fn func(tx *bolt.Tx, games *bolt.Bucket) error) error {
	//nolint:wrapcheck
	return s.DatabaseService.DB.Update(func(tx *bolt.Tx) error {
		games, err := common.Bucket(tx, common.WagerGamesBucket)
		if err != nil {
			return err //nolint:wrapcheck
		}

		return fn(tx, games)
	})
}

// emit runs after the transaction has committed, so it must not fail the
// operation. Events that can't be queued are logged and dropped.
func (s *WagerService) emit(event events.Event) {
	if s.EventSink == nil {
		return
	}

	if !s.EventSink.Send(event) {
		log.WithFields(log.Fields{
			"event": event.Type,
			"game":  event.Game,
		}).Warn("event dropped")
	}
}

func reject(op string, caller ledger.Address, err error) error {
	log.WithFields(log.Fields{
		"op":     op,
		"caller": caller,
	}).WithError(err).Debug("operation rejected")

	return err
}

func loadGame(games *bolt.Bucket, creator ledger.Address) (*Game, error) {
	raw := games.Get([]byte(creator))
	if raw == nil {
		return nil, nil //nolint:nilnil
	}

	var game Game

	err := json.Unmarshal(raw, &game)
	if err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %w", creator, err)
	}

	return &game, nil
}

func saveGame(games *bolt.Bucket, game *Game) error {
	raw, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to encode game %s: %w", game.Creator, err)
	}

	err = games.Put([]byte(game.Creator), raw)
	if err != nil {
		return fmt.Errorf("failed to store game %s: %w", game.Creator, err)
	}

	return nil
}
