package wager

import (
	"github.com/vreid/duel/internal/pkg/custody"
	"github.com/vreid/duel/internal/pkg/ledger"
)

// escrowSeed salts the derivation of every game's custodial identity.
const escrowSeed = "duel/escrow/v1"

// EscrowAddress is the address of the escrow a game created by creator uses.
func EscrowAddress(creator ledger.Address) ledger.Address {
	return custody.DeriveAddress(creator, []byte(escrowSeed))
}

// Game is the per-creator record. It is keyed by the creator's address and
// never deleted.
type Game struct {
	Creator          ledger.Address      `json:"creator"`
	CreatorAsset     ledger.Descriptor   `json:"creator_asset"`
	JoinRequirement  uint64              `json:"join_requirement"`
	Opponent         *ledger.Address     `json:"opponent,omitempty"`
	OpponentAssets   []ledger.Descriptor `json:"opponent_assets"`
	Active           bool                `json:"active"`
	Claimed          bool                `json:"claimed"`
	Outcome          *bool               `json:"outcome,omitempty"`
	Escrow           ledger.Address      `json:"escrow"`
	EscrowCapability *custody.Capability `json:"escrow_capability"`
}

// GameView is what leaves the process: the record minus its capability.
type GameView struct {
	Creator         ledger.Address      `json:"creator"`
	CreatorAsset    ledger.Descriptor   `json:"creator_asset"`
	JoinRequirement uint64              `json:"join_requirement"`
	Opponent        *ledger.Address     `json:"opponent"`
	OpponentAssets  []ledger.Descriptor `json:"opponent_assets"`
	Active          bool                `json:"active"`
	Claimed         bool                `json:"claimed"`
	Outcome         *bool               `json:"outcome"`
	Escrow          ledger.Address      `json:"escrow"`
}

func (g *Game) View() *GameView {
	opponentAssets := make([]ledger.Descriptor, len(g.OpponentAssets))
	copy(opponentAssets, g.OpponentAssets)

	return &GameView{
		Creator:         g.Creator,
		CreatorAsset:    g.CreatorAsset,
		JoinRequirement: g.JoinRequirement,
		Opponent:        g.Opponent,
		OpponentAssets:  opponentAssets,
		Active:          g.Active,
		Claimed:         g.Claimed,
		Outcome:         g.Outcome,
		Escrow:          g.Escrow,
	}
}

type InitializeArgs struct {
	Issuer          ledger.Address `json:"issuer"`
	Collection      string         `json:"collection"`
	Item            string         `json:"item"`
	Version         uint64         `json:"version"`
	JoinRequirement uint64         `json:"join_requirement"`
}

// JoinArgs carries the opponent's stake as four parallel sequences; entry i of
// each one together names the i-th asset.
type JoinArgs struct {
	Issuers     []ledger.Address `json:"issuers"`
	Collections []string         `json:"collections"`
	Items       []string         `json:"items"`
	Versions    []uint64         `json:"versions"`
}

type PlayArgs struct {
	Outcome bool `json:"outcome"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}
