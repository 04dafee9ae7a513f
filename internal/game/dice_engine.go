package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"dicevault/internal/ledger"
)

// Engine settles bets for one game deployment. All state lives in the
// store; an Engine is safe for concurrent use as far as the store's
// transactions are.
type Engine struct {
	gameType GameType
	variant  Variant
	store    ledger.Store
	ledger   ledgerUpdater
	now      func() time.Time
}

type Option func(*Engine)

// WithClock replaces the wall clock the time seed is read from.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(gameType GameType, store ledger.Store, opts ...Option) (*Engine, error) {
	variant, err := gameType.Variant()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		gameType: gameType,
		variant:  variant,
		store:    store,
		ledger:   newLedgerUpdater(string(gameType)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) GetType() GameType {
	return e.gameType
}

func (e *Engine) Variant() Variant {
	return e.variant
}

// StateAddress is where the GameState record lives.
func (e *Engine) StateAddress() ledger.Address {
	return e.ledger.state
}

// VaultAddress is the escrow account bets are collected into.
func (e *Engine) VaultAddress() ledger.Address {
	return e.ledger.vault
}

// Initialize creates the GameState with zero counters. It fails if the
// state already exists.
func (e *Engine) Initialize(ctx context.Context, authority ledger.Address, houseEdge uint8) (*GameState, error) {
	if houseEdge > 100 {
		return nil, ErrInvalidHouseEdge
	}
	if authority.IsZero() {
		return nil, fmt.Errorf("%w: empty authority", ledger.ErrInvalidAddress)
	}

	state := &GameState{
		Authority: authority,
		HouseEdge: houseEdge,
	}
	err := e.store.Update(ctx, func(tx ledger.Tx) error {
		_, err := tx.Get(ctx, e.ledger.state)
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, ledger.ErrRecordNotFound) {
			return fmt.Errorf("load game state: %w", err)
		}
		return e.ledger.storeState(ctx, tx, state)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"game":       e.gameType,
		"authority":  authority.String(),
		"house_edge": houseEdge,
	}).Infof("[%s] Game initialized", e.tag())
	return state, nil
}

// RollDice runs one settlement: validate, collect the wager, roll, pay out
// on a win and count the bet. Either every effect is committed or none is.
func (e *Engine) RollDice(ctx context.Context, player ledger.Address, bet Bet) (*Settlement, error) {
	if err := ValidateBet(e.variant, bet); err != nil {
		return nil, err
	}

	var settlement *Settlement
	err := e.store.Update(ctx, func(tx ledger.Tx) error {
		state, err := e.ledger.loadState(ctx, tx)
		if err != nil {
			return err
		}

		if err := e.ledger.collect(ctx, tx, player, bet.Amount); err != nil {
			return err
		}

		settledAt := e.now()
		dice := NewEntropy(settledAt, player).Roll(e.variant)
		outcome := Decide(e.variant, bet, dice)

		var payout Payout
		if outcome.Win {
			payout, err = CalculatePayout(bet.Amount, outcome.Multiplier, state.HouseEdge)
			if err != nil {
				return err
			}
		}

		state, err = e.ledger.commit(ctx, tx, player, outcome.Win, payout.Net)
		if err != nil {
			return err
		}
		// A caller that gave up must not find the bet committed.
		if err := ctx.Err(); err != nil {
			return err
		}

		settlement = &Settlement{
			ID:        uuid.New().String(),
			Game:      e.gameType,
			Player:    player,
			Bet:       bet,
			Outcome:   outcome,
			Payout:    payout,
			TotalBets: state.TotalBets,
			TotalWins: state.TotalWins,
			SettledAt: settledAt,
		}
		settlement.Hash = SettlementHash(settlement)
		return nil
	})
	if err != nil {
		log.WithFields(log.Fields{
			"game":   e.gameType,
			"player": player.String(),
			"amount": bet.Amount,
		}).Warnf("[%s] Settlement aborted: %v", e.tag(), err)
		return nil, err
	}

	e.logSettlement(settlement)
	return settlement, nil
}

// State reads the current GameState.
func (e *Engine) State(ctx context.Context) (*GameState, error) {
	var state *GameState
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		state, err = e.ledger.loadState(ctx, tx)
		return err
	})
	return state, err
}

func (e *Engine) VaultBalance(ctx context.Context) (uint64, error) {
	return ledger.BalanceOf(ctx, e.store, e.ledger.vault)
}

// FundVault deposits house money into the vault. Inflows need no vault
// authority.
func (e *Engine) FundVault(ctx context.Context, from ledger.Address, amount uint64) (uint64, error) {
	if e.ledger.owns(from) {
		return 0, fmt.Errorf("%w: program account cannot fund the vault", ledger.ErrUnauthorizedTransfer)
	}

	var balance uint64
	err := e.store.Update(ctx, func(tx ledger.Tx) error {
		if err := ledger.Transfer(ctx, tx, from, e.ledger.vault, amount); err != nil {
			return err
		}
		var err error
		balance, err = tx.Balance(ctx, e.ledger.vault)
		return err
	})
	if err != nil {
		return 0, err
	}

	log.Infof("[%s] Vault funded with %d by %s, balance %d", e.tag(), amount, from, balance)
	return balance, nil
}

func (e *Engine) logSettlement(s *Settlement) {
	status := "lost"
	if s.Outcome.Win {
		status = "won"
	}

	entry := log.WithFields(log.Fields{
		"game":          s.Game,
		"settlement_id": s.ID,
		"player":        s.Player.String(),
		"amount":        s.Bet.Amount,
		"payout":        s.Payout.Net,
		"total_bets":    s.TotalBets,
		"total_wins":    s.TotalWins,
	})

	if e.variant == SingleDie {
		entry.Infof("Rolled: %d (guess %d), %s", s.Outcome.Dice[0], s.Bet.Value, status)
		return
	}
	entry.Infof("Rolled: %d + %d = %d (%s %d), %s",
		s.Outcome.Dice[0], s.Outcome.Dice[1], s.Outcome.Total, s.Bet.Type, s.Bet.Value, status)
}

func (e *Engine) tag() string {
	if e.variant == SingleDie {
		return "CLASSIC"
	}
	return "DICE"
}
