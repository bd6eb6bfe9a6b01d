package wager

import "github.com/vreid/duel/internal/pkg/ledger"

// Guards inspect a record and never mutate it. A nil record means no game
// exists at the address.

func AssertExists(g *Game) error {
	if g == nil {
		return ErrRecordMissing
	}

	return nil
}

func AssertDoesNotExist(g *Game) error {
	if g != nil {
		return CodeRecordExists.New("game already exists for %s", g.Creator)
	}

	return nil
}

func AssertActive(g *Game) error {
	if !g.Active {
		return ErrRecordInactive
	}

	return nil
}

func AssertNotActive(g *Game) error {
	if g.Active {
		return ErrRecordActive
	}

	return nil
}

func AssertHasOpponent(g *Game) error {
	if g.Opponent == nil {
		return ErrOpponentAbsent
	}

	return nil
}

func AssertHasNoOpponent(g *Game) error {
	if g.Opponent != nil {
		return CodeOpponentPresent.New("game already has opponent %s", *g.Opponent)
	}

	return nil
}

func AssertJoinRequirementMet(g *Game, count int) error {
	if count < 0 || uint64(count) != g.JoinRequirement {
		return CodeRequirementUnmet.New("got %d assets, need %d", count, g.JoinRequirement)
	}

	return nil
}

// AssertHasOutcome is not part of any transition; claim deliberately skips it.
func AssertHasOutcome(g *Game) error {
	if g.Outcome == nil {
		return ErrOutcomeUnset
	}

	return nil
}

func AssertNotClaimed(g *Game) error {
	if g.Claimed {
		return ErrAlreadyClaimed
	}

	return nil
}

func AssertIsPlayer(g *Game, caller ledger.Address) error {
	if caller == g.Creator {
		return nil
	}

	if g.Opponent != nil && *g.Opponent == caller {
		return nil
	}

	return CodeNotAPlayer.New("%s is not a player", caller)
}

func AssertEqualArity(args JoinArgs) error {
	n := len(args.Issuers)
	if len(args.Collections) != n || len(args.Items) != n || len(args.Versions) != n {
		return CodeInputArityMismatch.New(
			"issuers=%d collections=%d items=%d versions=%d",
			len(args.Issuers), len(args.Collections), len(args.Items), len(args.Versions))
	}

	return nil
}

// Descriptors pairs the parallel join sequences up. Call AssertEqualArity
// first.
func (args JoinArgs) Descriptors() []ledger.Descriptor {
	result := make([]ledger.Descriptor, 0, len(args.Issuers))

	for idx := range args.Issuers {
		result = append(result, ledger.Descriptor{
			Issuer:     args.Issuers[idx],
			Collection: args.Collections[idx],
			Item:       args.Items[idx],
			Version:    args.Versions[idx],
		})
	}

	return result
}

func check(guards ...func() error) error {
	for _, guard := range guards {
		err := guard()
		if err != nil {
			return err
		}
	}

	return nil
}
