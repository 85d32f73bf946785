package game

// EventKind enumerates the lifecycle signals emitted by a tick.
type EventKind uint8

const (
	RoundStarted EventKind = iota + 1
	SnakeDied
	PlayerDied
	BotSpawned
	RoundEnded
)

// KillerWall names the arena edge as the cause of a death.
const KillerWall = "wall"

// KillerTimeout marks a round that hit its tick limit with the player alive.
const KillerTimeout = "timeout"

func (k EventKind) String() string {
	switch k {
	case RoundStarted:
		return "round_started"
	case SnakeDied:
		return "snake_died"
	case PlayerDied:
		return "player_died"
	case BotSpawned:
		return "bot_spawned"
	case RoundEnded:
		return "round_ended"
	}
	return "unknown"
}

// Event is emitted by the world for the presentation and scoring layers.
// Score is the snake's score at the moment of the event.
type Event struct {
	Kind    EventKind `json:"kind" msgpack:"kind"`
	Tick    int64     `json:"tick" msgpack:"tick"`
	SnakeID uint32    `json:"snake_id,omitempty" msgpack:"snake_id,omitempty"`
	Name    string    `json:"name,omitempty" msgpack:"name,omitempty"`
	Score   int       `json:"score" msgpack:"score"`
	Killer  string    `json:"killer,omitempty" msgpack:"killer,omitempty"`
}
