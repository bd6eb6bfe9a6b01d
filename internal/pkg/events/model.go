package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/vreid/duel/internal/pkg/ledger"
)

type Type string

const (
	GameCreated   Type = "gameCreated"
	GameCancelled Type = "gameCancelled"
	GameJoined    Type = "gameJoined"
	GamePlayed    Type = "gamePlayed"
	GameClaimed   Type = "gameClaimed"
)

type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       Type              `json:"type"`
	Game       ledger.Address    `json:"game"`
	Caller     ledger.Address    `json:"caller"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func New(eventType Type, game, caller ledger.Address, attributes map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Game:       game,
		Caller:     caller,
		Timestamp:  time.Now().Unix(),
		Attributes: attributes,
	}
}
