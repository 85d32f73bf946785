package game

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("invalid arena config")

// Config holds the arena tuning knobs. Zero values are not usable; start
// from DefaultConfig and override.
type Config struct {
	MapSize    float64 // side of the square arena, centered at the origin
	BaseSpeed  float64
	BoostSpeed float64
	TurnSpeed  float64 // max radians per tick

	BaseRadius   float64
	RadiusFactor float64 // radius = BaseRadius + sqrt(score)*RadiusFactor
	LengthFactor float64 // path points = score*LengthFactor / (speed*0.5)

	BoostMinScore   int     // boosting requires score strictly above this
	BoostDropChance float64 // per boosted tick chance to shed one score as food

	BotCount int
	MaxFood  int

	StartScore   int
	StartPathLen int

	DeathFoodStride  int // every Nth path point of a dead snake becomes food
	DeathFoodValue   int
	DeathParticles   int
	CollisionStride  int     // every Nth path point is tested for head contact
	CollisionSlack   float64 // contact when distance < r1 + r2 - slack
	PickupBroadPhase float64 // extra margin for the |dx| pickup pre-check
}

// DefaultConfig matches the tuning of the browser game.
func DefaultConfig() Config {
	return Config{
		MapSize:          4000,
		BaseSpeed:        4,
		BoostSpeed:       8,
		TurnSpeed:        0.12,
		BaseRadius:       10,
		RadiusFactor:     0.5,
		LengthFactor:     5,
		BoostMinScore:    15,
		BoostDropChance:  0.2,
		BotCount:         15,
		MaxFood:          800,
		StartScore:       10,
		StartPathLen:     30,
		DeathFoodStride:  3,
		DeathFoodValue:   2,
		DeathParticles:   20,
		CollisionStride:  4,
		CollisionSlack:   5,
		PickupBroadPhase: 10,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.MapSize <= 0:
		return fmt.Errorf("%w: map size %v must be positive", ErrInvalidConfig, c.MapSize)
	case c.BaseSpeed <= 0 || c.BoostSpeed <= 0:
		return fmt.Errorf("%w: speeds must be positive (base=%v boost=%v)", ErrInvalidConfig, c.BaseSpeed, c.BoostSpeed)
	case c.TurnSpeed <= 0:
		return fmt.Errorf("%w: turn speed %v must be positive", ErrInvalidConfig, c.TurnSpeed)
	case c.LengthFactor <= 0:
		return fmt.Errorf("%w: length factor %v must be positive", ErrInvalidConfig, c.LengthFactor)
	case c.BaseRadius < 0 || c.RadiusFactor < 0:
		return fmt.Errorf("%w: radius terms must be non-negative", ErrInvalidConfig)
	case c.BoostDropChance < 0 || c.BoostDropChance > 1:
		return fmt.Errorf("%w: boost drop chance %v outside [0,1]", ErrInvalidConfig, c.BoostDropChance)
	case c.BotCount < 0 || c.MaxFood < 0:
		return fmt.Errorf("%w: negative population (bots=%d food=%d)", ErrInvalidConfig, c.BotCount, c.MaxFood)
	case c.StartScore < 0 || c.StartPathLen < 1:
		return fmt.Errorf("%w: start score %d / path len %d", ErrInvalidConfig, c.StartScore, c.StartPathLen)
	case c.DeathFoodStride < 1 || c.CollisionStride < 1:
		return fmt.Errorf("%w: strides must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// Half is half the arena side; positions outside [-Half, Half] are out of bounds.
func (c Config) Half() float64 { return c.MapSize / 2 }
