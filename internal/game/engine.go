package game

import (
	"fmt"
	"sort"
)

type GameType string

const (
	// GameTypeDice rolls two dice and settles SingleNumber, EvenOdd and
	// LowHigh bets.
	GameTypeDice GameType = "dice"
	// GameTypeClassic rolls one die against a 1-6 number guess.
	GameTypeClassic GameType = "classic"
)

// GameTypes lists every game type this package can settle.
func GameTypes() []GameType {
	return []GameType{GameTypeDice, GameTypeClassic}
}

// Variant selects how many dice a game rolls and which bets it takes.
type Variant uint8

const (
	TwoDice Variant = iota
	SingleDie
)

// Variant returns the rules a game type is played under.
func (g GameType) Variant() (Variant, error) {
	switch g {
	case GameTypeDice:
		return TwoDice, nil
	case GameTypeClassic:
		return SingleDie, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGame, string(g))
	}
}

// GameFactory holds one settlement engine per game type.
type GameFactory struct {
	engines map[GameType]*Engine
}

func NewGameFactory() *GameFactory {
	return &GameFactory{
		engines: make(map[GameType]*Engine),
	}
}

func (gf *GameFactory) RegisterEngine(engine *Engine) {
	gf.engines[engine.GetType()] = engine
}

func (gf *GameFactory) GetEngine(gameType GameType) (*Engine, bool) {
	engine, exists := gf.engines[gameType]
	return engine, exists
}

// Types lists the registered game types in a stable order.
func (gf *GameFactory) Types() []GameType {
	types := make([]GameType, 0, len(gf.engines))
	for gameType := range gf.engines {
		types = append(types, gameType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
