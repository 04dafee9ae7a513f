package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"dicevault/internal/ledger"
)

const (
	testHouseEdge   = 5
	testVaultFunds  = 100 * LamportsPerSOL
	testPlayerFunds = 10 * LamportsPerSOL
)

var (
	testAuthority = ledger.DeriveAddress("test", "authority")
	testHouse     = ledger.DeriveAddress("test", "house")
)

// epochClock pins the time seed to zero, so die i equals id[i]%6 + 1.
func epochClock() time.Time {
	return time.Unix(0, 0)
}

type engineFixture struct {
	ctx    context.Context
	store  ledger.Store
	engine *Engine
}

func newEngineFixture(t *testing.T, gameType GameType, store ledger.Store, vaultFunds uint64) *engineFixture {
	t.Helper()
	ctx := context.Background()

	engine, err := NewEngine(gameType, store, WithClock(epochClock))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if _, err := engine.Initialize(ctx, testAuthority, testHouseEdge); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if vaultFunds > 0 {
		if _, err := ledger.Airdrop(ctx, store, testHouse, vaultFunds); err != nil {
			t.Fatalf("Airdrop() error = %v", err)
		}
		if _, err := engine.FundVault(ctx, testHouse, vaultFunds); err != nil {
			t.Fatalf("FundVault() error = %v", err)
		}
	}
	return &engineFixture{ctx: ctx, store: store, engine: engine}
}

func (f *engineFixture) player(t *testing.T, prefix ...byte) ledger.Address {
	t.Helper()
	addr := addressWithPrefix(prefix...)
	if _, err := ledger.Airdrop(f.ctx, f.store, addr, testPlayerFunds); err != nil {
		t.Fatalf("Airdrop() error = %v", err)
	}
	return addr
}

func (f *engineFixture) balance(t *testing.T, addr ledger.Address) uint64 {
	t.Helper()
	balance, err := ledger.BalanceOf(f.ctx, f.store, addr)
	if err != nil {
		t.Fatalf("BalanceOf() error = %v", err)
	}
	return balance
}

func (f *engineFixture) state(t *testing.T) *GameState {
	t.Helper()
	state, err := f.engine.State(f.ctx)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	return state
}

func TestEngine_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("creates zeroed state", func(t *testing.T) {
		f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), 0)
		state := f.state(t)
		want := GameState{Authority: testAuthority, HouseEdge: testHouseEdge}
		if *state != want {
			t.Errorf("State() = %+v, want %+v", *state, want)
		}
	})

	t.Run("second initialize fails", func(t *testing.T) {
		f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), 0)
		_, err := f.engine.Initialize(ctx, testAuthority, 10)
		if !errors.Is(err, ErrAlreadyInitialized) {
			t.Fatalf("Initialize() error = %v, want ErrAlreadyInitialized", err)
		}
		if f.state(t).HouseEdge != testHouseEdge {
			t.Error("house edge changed by a rejected initialize")
		}
	})

	t.Run("house edge above 100", func(t *testing.T) {
		engine, _ := NewEngine(GameTypeDice, ledger.NewMemoryStore())
		if _, err := engine.Initialize(ctx, testAuthority, 101); !errors.Is(err, ErrInvalidHouseEdge) {
			t.Errorf("Initialize() error = %v, want ErrInvalidHouseEdge", err)
		}
	})

	t.Run("empty authority", func(t *testing.T) {
		engine, _ := NewEngine(GameTypeDice, ledger.NewMemoryStore())
		if _, err := engine.Initialize(ctx, ledger.Address{}, 5); !errors.Is(err, ledger.ErrInvalidAddress) {
			t.Errorf("Initialize() error = %v, want ErrInvalidAddress", err)
		}
	})

	t.Run("games do not share state", func(t *testing.T) {
		store := ledger.NewMemoryStore()
		newEngineFixture(t, GameTypeDice, store, 0)
		classic, _ := NewEngine(GameTypeClassic, store)
		if _, err := classic.Initialize(ctx, testAuthority, 3); err != nil {
			t.Errorf("Initialize() classic error = %v", err)
		}
	})

	t.Run("unknown game type", func(t *testing.T) {
		if _, err := NewEngine(GameType("roulette"), ledger.NewMemoryStore()); !errors.Is(err, ErrUnknownGame) {
			t.Errorf("NewEngine() error = %v, want ErrUnknownGame", err)
		}
	})
}

func TestEngine_RollDice(t *testing.T) {
	tests := []struct {
		name       string
		gameType   GameType
		prefix     []byte
		bet        Bet
		wantDice   []uint8
		wantWin    bool
		wantPayout uint64
	}{
		{
			name: "single number win", gameType: GameTypeDice, prefix: []byte{2, 3},
			bet: Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 7}, wantDice: []uint8{3, 4},
			wantWin: true, wantPayout: 950_000_000,
		},
		{
			name: "single number loss", gameType: GameTypeDice, prefix: []byte{2, 3},
			bet: Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 8}, wantDice: []uint8{3, 4},
		},
		{
			name: "even total pays zero", gameType: GameTypeDice, prefix: []byte{0, 0},
			bet: Bet{Amount: MinBetAmount, Type: EvenOdd, Value: 0}, wantDice: []uint8{1, 1},
			wantWin: true, wantPayout: 190_000_000,
		},
		{
			name: "low high win", gameType: GameTypeDice, prefix: []byte{2, 3},
			bet: Bet{Amount: MinBetAmount, Type: LowHigh, Value: BetHigh}, wantDice: []uint8{3, 4},
			wantWin: true, wantPayout: 142_500_000,
		},
		{
			name: "low high loss", gameType: GameTypeDice, prefix: []byte{0, 0},
			bet: Bet{Amount: MinBetAmount, Type: LowHigh, Value: BetHigh}, wantDice: []uint8{1, 1},
		},
		{
			name: "classic win", gameType: GameTypeClassic, prefix: []byte{3},
			bet: Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 4}, wantDice: []uint8{4},
			wantWin: true, wantPayout: 190_000_000,
		},
		{
			name: "classic loss", gameType: GameTypeClassic, prefix: []byte{3},
			bet: Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 1}, wantDice: []uint8{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, tt.gameType, ledger.NewMemoryStore(), testVaultFunds)
			player := f.player(t, tt.prefix...)

			s, err := f.engine.RollDice(f.ctx, player, tt.bet)
			if err != nil {
				t.Fatalf("RollDice() error = %v", err)
			}

			if len(s.Outcome.Dice) != len(tt.wantDice) {
				t.Fatalf("dice = %v, want %v", s.Outcome.Dice, tt.wantDice)
			}
			for i := range tt.wantDice {
				if s.Outcome.Dice[i] != tt.wantDice[i] {
					t.Errorf("dice = %v, want %v", s.Outcome.Dice, tt.wantDice)
				}
			}
			if s.Outcome.Win != tt.wantWin {
				t.Errorf("Win = %v, want %v", s.Outcome.Win, tt.wantWin)
			}
			if s.Payout.Net != tt.wantPayout {
				t.Errorf("Payout.Net = %d, want %d", s.Payout.Net, tt.wantPayout)
			}
			if s.ID == "" {
				t.Error("settlement has no ID")
			}

			wantPlayer := testPlayerFunds - tt.bet.Amount + tt.wantPayout
			if got := f.balance(t, player); got != wantPlayer {
				t.Errorf("player balance = %d, want %d", got, wantPlayer)
			}
			wantVault := testVaultFunds + tt.bet.Amount - tt.wantPayout
			if got := f.balance(t, f.engine.VaultAddress()); got != wantVault {
				t.Errorf("vault balance = %d, want %d", got, wantVault)
			}

			state := f.state(t)
			wantWins := uint64(0)
			if tt.wantWin {
				wantWins = 1
			}
			if state.TotalBets != 1 || state.TotalWins != wantWins {
				t.Errorf("counters = %d/%d, want 1/%d", state.TotalBets, state.TotalWins, wantWins)
			}
			if s.TotalBets != state.TotalBets || s.TotalWins != state.TotalWins {
				t.Errorf("settlement counters %d/%d disagree with state", s.TotalBets, s.TotalWins)
			}
		})
	}
}

func TestEngine_RollDice_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		bet     Bet
		wantErr error
	}{
		{name: "zero amount", bet: Bet{Amount: 0, Type: SingleNumber, Value: 7}, wantErr: ErrBetTooSmall},
		{name: "single number 13", bet: Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 13}, wantErr: ErrInvalidBetValue},
		{name: "even odd 2", bet: Bet{Amount: MinBetAmount, Type: EvenOdd, Value: 2}, wantErr: ErrInvalidBetValue},
		{name: "player cannot cover bet", bet: Bet{Amount: testPlayerFunds + 1, Type: EvenOdd, Value: 1}, wantErr: ledger.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), testVaultFunds)
			player := f.player(t, 2, 3)

			if _, err := f.engine.RollDice(f.ctx, player, tt.bet); !errors.Is(err, tt.wantErr) {
				t.Fatalf("RollDice() error = %v, want %v", err, tt.wantErr)
			}
			assertUntouched(t, f, player)
		})
	}

	t.Run("not initialized", func(t *testing.T) {
		store := ledger.NewMemoryStore()
		engine, _ := NewEngine(GameTypeDice, store)
		player := addressWithPrefix(1)
		ledger.Airdrop(context.Background(), store, player, testPlayerFunds)

		_, err := engine.RollDice(context.Background(), player, Bet{Amount: MinBetAmount, Type: EvenOdd, Value: 1})
		if !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("RollDice() error = %v, want ErrNotInitialized", err)
		}
		if balance, _ := ledger.BalanceOf(context.Background(), store, player); balance != testPlayerFunds {
			t.Errorf("player charged without a game: balance %d", balance)
		}
	})

	t.Run("vault cannot bet", func(t *testing.T) {
		f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), testVaultFunds)
		_, err := f.engine.RollDice(f.ctx, f.engine.VaultAddress(), Bet{Amount: MinBetAmount, Type: EvenOdd, Value: 1})
		if !errors.Is(err, ledger.ErrUnauthorizedTransfer) {
			t.Errorf("RollDice() error = %v, want ErrUnauthorizedTransfer", err)
		}
	})
}

func assertUntouched(t *testing.T, f *engineFixture, player ledger.Address) {
	t.Helper()
	if got := f.balance(t, player); got != testPlayerFunds {
		t.Errorf("player balance = %d, want %d", got, testPlayerFunds)
	}
	if got := f.balance(t, f.engine.VaultAddress()); got != testVaultFunds {
		t.Errorf("vault balance = %d, want %d", got, testVaultFunds)
	}
	state := f.state(t)
	if state.TotalBets != 0 || state.TotalWins != 0 {
		t.Errorf("counters = %d/%d, want 0/0", state.TotalBets, state.TotalWins)
	}
}

func TestEngine_RollDice_VaultSolvency(t *testing.T) {
	f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), MinBetAmount)
	player := f.player(t, 2, 3)

	// A 7 pays 0.95 SOL; the vault only holds 0.2 SOL after the wager.
	_, err := f.engine.RollDice(f.ctx, player, Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 7})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("RollDice() error = %v, want ErrInsufficientFunds", err)
	}

	if got := f.balance(t, player); got != testPlayerFunds {
		t.Errorf("player balance = %d, want %d", got, testPlayerFunds)
	}
	if got := f.balance(t, f.engine.VaultAddress()); got != MinBetAmount {
		t.Errorf("vault balance = %d, want %d", got, MinBetAmount)
	}
	if state := f.state(t); state.TotalBets != 0 {
		t.Errorf("TotalBets = %d, want 0", state.TotalBets)
	}
}

// faultyStore fails the n-th balance write or the first record write of
// every Update.
type faultyStore struct {
	ledger.Store
	failBalanceWrite int
	failRecordWrite  bool
}

var errInjected = errors.New("injected failure")

func (s *faultyStore) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.Store.Update(ctx, func(tx ledger.Tx) error {
		return fn(&faultyTx{Tx: tx, store: s})
	})
}

type faultyTx struct {
	ledger.Tx
	store         *faultyStore
	balanceWrites int
}

func (t *faultyTx) SetBalance(ctx context.Context, addr ledger.Address, amount uint64) error {
	t.balanceWrites++
	if t.balanceWrites == t.store.failBalanceWrite {
		return errInjected
	}
	return t.Tx.SetBalance(ctx, addr, amount)
}

func (t *faultyTx) Put(ctx context.Context, addr ledger.Address, data []byte) error {
	if t.store.failRecordWrite {
		return errInjected
	}
	return t.Tx.Put(ctx, addr, data)
}

func TestEngine_RollDice_Atomicity(t *testing.T) {
	winningBet := Bet{Amount: MinBetAmount, Type: SingleNumber, Value: 7}

	tests := []struct {
		name             string
		failBalanceWrite int
		failRecordWrite  bool
	}{
		// writes 1 and 2 collect the wager, 3 and 4 pay it out
		{name: "fail debiting the vault for the payout", failBalanceWrite: 3},
		{name: "fail crediting the payout", failBalanceWrite: 4},
		{name: "fail crediting the wager to the vault", failBalanceWrite: 2},
		{name: "fail writing counters", failRecordWrite: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &faultyStore{Store: ledger.NewMemoryStore()}
			f := newEngineFixture(t, GameTypeDice, store, testVaultFunds)
			player := f.player(t, 2, 3)

			store.failBalanceWrite = tt.failBalanceWrite
			store.failRecordWrite = tt.failRecordWrite

			if _, err := f.engine.RollDice(f.ctx, player, winningBet); !errors.Is(err, errInjected) {
				t.Fatalf("RollDice() error = %v, want injected failure", err)
			}

			store.failBalanceWrite = 0
			store.failRecordWrite = false
			assertUntouched(t, f, player)
		})
	}
}

func TestEngine_Invariants(t *testing.T) {
	f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), 1000*LamportsPerSOL)
	rng := rand.New(rand.NewSource(42))

	players := make([]ledger.Address, 8)
	for i := range players {
		players[i] = f.player(t, byte(i), byte(rng.Intn(256)))
	}
	supply := func() uint64 {
		total := f.balance(t, f.engine.VaultAddress())
		for _, p := range players {
			total += f.balance(t, p)
		}
		return total
	}
	startSupply := supply()

	var prevBets uint64
	for i := 0; i < 300; i++ {
		bet := Bet{Amount: MinBetAmount * uint64(1+rng.Intn(3)), Type: BetType(rng.Intn(3))}
		switch bet.Type {
		case SingleNumber:
			bet.Value = uint8(2 + rng.Intn(11))
		default:
			bet.Value = uint8(rng.Intn(2))
		}

		_, err := f.engine.RollDice(f.ctx, players[rng.Intn(len(players))], bet)
		state := f.state(t)
		if err != nil {
			if state.TotalBets != prevBets {
				t.Fatalf("failed roll changed TotalBets: %d -> %d", prevBets, state.TotalBets)
			}
			continue
		}
		if state.TotalBets != prevBets+1 {
			t.Fatalf("TotalBets = %d after successful roll, want %d", state.TotalBets, prevBets+1)
		}
		if state.TotalWins > state.TotalBets {
			t.Fatalf("TotalWins %d > TotalBets %d", state.TotalWins, state.TotalBets)
		}
		prevBets = state.TotalBets
	}

	// The house edge stays in the vault, so value is conserved.
	if got := supply(); got != startSupply {
		t.Errorf("total supply = %d, want %d", got, startSupply)
	}
}

func TestEngine_ConcurrentRolls(t *testing.T) {
	f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), 1000*LamportsPerSOL)

	const workers = 8
	const rollsEach = 25
	players := make([]ledger.Address, workers)
	for i := range players {
		players[i] = f.player(t, byte(i), byte(i*7))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(player ledger.Address) {
			defer wg.Done()
			for j := 0; j < rollsEach; j++ {
				_, err := f.engine.RollDice(f.ctx, player, Bet{Amount: MinBetAmount, Type: LowHigh, Value: uint8(j % 2)})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}
		}(players[i])
	}
	wg.Wait()

	state := f.state(t)
	if state.TotalBets != uint64(succeeded) {
		t.Errorf("TotalBets = %d, want %d", state.TotalBets, succeeded)
	}
	if succeeded != workers*rollsEach {
		t.Errorf("succeeded = %d, want %d", succeeded, workers*rollsEach)
	}
}

func TestEngine_FundVault(t *testing.T) {
	f := newEngineFixture(t, GameTypeDice, ledger.NewMemoryStore(), 0)

	t.Run("vault cannot fund itself", func(t *testing.T) {
		_, err := f.engine.FundVault(f.ctx, f.engine.VaultAddress(), 1)
		if !errors.Is(err, ledger.ErrUnauthorizedTransfer) {
			t.Errorf("FundVault() error = %v, want ErrUnauthorizedTransfer", err)
		}
	})

	t.Run("unfunded house", func(t *testing.T) {
		_, err := f.engine.FundVault(f.ctx, testHouse, 1)
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			t.Errorf("FundVault() error = %v, want ErrInsufficientFunds", err)
		}
	})

	t.Run("deposit", func(t *testing.T) {
		ledger.Airdrop(f.ctx, f.store, testHouse, 5*LamportsPerSOL)
		balance, err := f.engine.FundVault(f.ctx, testHouse, 2*LamportsPerSOL)
		if err != nil {
			t.Fatalf("FundVault() error = %v", err)
		}
		if balance != 2*LamportsPerSOL {
			t.Errorf("vault balance = %d, want %d", balance, 2*LamportsPerSOL)
		}
		if vault, _ := f.engine.VaultBalance(f.ctx); vault != balance {
			t.Errorf("VaultBalance() = %d, want %d", vault, balance)
		}
	})
}
