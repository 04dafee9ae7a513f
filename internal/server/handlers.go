package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"dicevault/internal/game"
	"dicevault/internal/ledger"
)

const solDecimals = 9

// lamportsToSOL renders a lamport amount as a fixed nine-decimal SOL string.
func lamportsToSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -solDecimals).StringFixed(solDecimals)
}

// solToLamports parses a SOL amount such as "0.25". Fractions below one
// lamport are rejected rather than rounded.
func solToLamports(sol string) (uint64, error) {
	d, err := decimal.NewFromString(sol)
	if err != nil {
		return 0, err
	}
	lamports := d.Shift(solDecimals)
	if lamports.IsNegative() || !lamports.IsInteger() {
		return 0, fmt.Errorf("%s is not a whole number of lamports", sol)
	}
	amount := lamports.BigInt()
	if !amount.IsUint64() {
		return 0, fmt.Errorf("%s SOL does not fit in 64 bits of lamports", sol)
	}
	return amount.Uint64(), nil
}

func amountView(lamports uint64) fiber.Map {
	return fiber.Map{
		"lamports": lamports,
		"sol":      lamportsToSOL(lamports),
	}
}

// amountRequest takes either lamports or a SOL string.
type amountRequest struct {
	Amount    uint64 `json:"amount"`
	AmountSOL string `json:"amount_sol"`
}

func (r amountRequest) lamports() (uint64, error) {
	if r.AmountSOL == "" {
		return r.Amount, nil
	}
	if r.Amount != 0 {
		return 0, errors.New("set amount or amount_sol, not both")
	}
	return solToLamports(r.AmountSOL)
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"store": s.cfg.StoreBackend,
		"game": fiber.Map{
			"status":            "running",
			"games":             s.gameFactory.Types(),
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	if s.nats != nil {
		health["nats"] = fiber.Map{"status": s.nats.Status().String()}
	}
	return c.JSON(health)
}

func (s *FiberServer) gameEngine(c *fiber.Ctx) (*game.Engine, error) {
	gameType := game.GameType(c.Params("game"))
	engine, ok := s.gameFactory.GetEngine(gameType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", game.ErrUnknownGame, string(gameType))
	}
	return engine, nil
}

func addressParam(c *fiber.Ctx) (ledger.Address, error) {
	return ledger.ParseAddress(c.Params("address"))
}

func (s *FiberServer) initializeHandler(c *fiber.Ctx) error {
	engine, err := s.gameEngine(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req struct {
		Authority ledger.Address `json:"authority"`
		HouseEdge *uint8         `json:"house_edge"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.HouseEdge == nil {
		return badRequest(c, "house_edge is required")
	}

	state, err := engine.Initialize(c.UserContext(), req.Authority, *req.HouseEdge)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"game":  engine.GetType(),
		"state": state,
		"vault": engine.VaultAddress(),
	})
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	engine, err := s.gameEngine(c)
	if err != nil {
		return errorResponse(c, err)
	}

	state, err := engine.State(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"game":    engine.GetType(),
		"address": engine.StateAddress(),
		"state":   state,
	})
}

type rollRequest struct {
	amountRequest
	Player   ledger.Address `json:"player"`
	BetType  game.BetType   `json:"bet_type"`
	BetValue uint8          `json:"bet_value"`
}

func (s *FiberServer) rollHandler(c *fiber.Ctx) error {
	engine, err := s.gameEngine(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req rollRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Player.IsZero() {
		return badRequest(c, "player is required")
	}
	amount, err := req.lamports()
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp := s.roll(c.UserContext(), engine.GetType(), req.Player, amount, req.BetType, req.BetValue)
	if !resp.Success {
		return c.Status(statusFor(resp.Code)).JSON(resp)
	}
	return c.JSON(resp)
}

type rollResult struct {
	game.RollResponse
	Payout  fiber.Map `json:"payout,omitempty"`
	Balance fiber.Map `json:"balance,omitempty"`
}

// roll queues a settlement and decorates a successful one with SOL amounts
// and the player's new balance.
func (s *FiberServer) roll(ctx context.Context, gameType game.GameType, player ledger.Address, amount uint64, betType game.BetType, betValue uint8) rollResult {
	resp := s.gameManager.RollDice(game.RollRequest{
		Game:     gameType,
		Player:   player,
		Amount:   amount,
		BetType:  betType,
		BetValue: betValue,
	})

	result := rollResult{RollResponse: resp}
	if !resp.Success {
		return result
	}

	result.Payout = amountView(resp.Settlement.Payout.Net)
	if balance, err := ledger.BalanceOf(ctx, s.store, player); err == nil {
		result.Balance = amountView(balance)
	} else {
		log.Warnf("[SERVER] Balance read after settlement %s failed: %v", resp.Settlement.ID, err)
	}
	return result
}

func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	engine, err := s.gameEngine(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var settlement game.Settlement
	if err := c.BodyParser(&settlement); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if settlement.Game != engine.GetType() {
		return badRequest(c, fmt.Sprintf("settlement belongs to %q", settlement.Game))
	}

	state, err := engine.State(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}

	hash := game.SettlementHash(&settlement)
	result := fiber.Map{
		"settlement_id": settlement.ID,
		"hash":          hash,
		"hash_checked":  settlement.Hash != "",
		"verified":      true,
	}
	if err := game.VerifySettlement(&settlement, state.HouseEdge); err != nil {
		result["verified"] = false
		result["error"] = err.Error()
		result["code"] = errorCode(err)
	} else if settlement.Hash != "" && settlement.Hash != hash {
		result["verified"] = false
		result["error"] = "hash does not match settlement"
		result["code"] = game.CodeMismatch
	}
	return c.JSON(result)
}

func (s *FiberServer) getVaultHandler(c *fiber.Ctx) error {
	engine, err := s.gameEngine(c)
	if err != nil {
		return errorResponse(c, err)
	}

	balance, err := engine.VaultBalance(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"game":    engine.GetType(),
		"address": engine.VaultAddress(),
		"balance": amountView(balance),
	})
}

func (s *FiberServer) fundVaultHandler(c *fiber.Ctx) error {
	engine, err := s.gameEngine(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req struct {
		amountRequest
		From ledger.Address `json:"from"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	amount, err := req.lamports()
	if err != nil {
		return badRequest(c, err.Error())
	}

	balance, err := engine.FundVault(c.UserContext(), req.From, amount)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"game":    engine.GetType(),
		"address": engine.VaultAddress(),
		"balance": amountView(balance),
	})
}

func (s *FiberServer) getBalanceHandler(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return errorResponse(c, err)
	}

	balance, err := ledger.BalanceOf(c.UserContext(), s.store, addr)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"address": addr,
		"balance": amountView(balance),
	})
}

// airdropHandler credits an account out of thin air (for testing/admin)
func (s *FiberServer) airdropHandler(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	amount, err := req.lamports()
	if err != nil {
		return badRequest(c, err.Error())
	}

	balance, err := ledger.Airdrop(c.UserContext(), s.store, addr, amount)
	if err != nil {
		return errorResponse(c, err)
	}

	log.Infof("[SERVER] Airdropped %s SOL to %s", lamportsToSOL(amount), addr)
	return c.JSON(fiber.Map{
		"address": addr,
		"balance": amountView(balance),
		"message": "Airdrop credited",
	})
}

// Counter handlers

func (s *FiberServer) createCounterHandler(c *fiber.Ctx) error {
	var req struct {
		Payer   ledger.Address `json:"payer"`
		Address ledger.Address `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ctr, err := s.counters.Initialize(c.UserContext(), req.Payer, req.Address)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ctr)
}

func (s *FiberServer) getCounterHandler(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctr, err := s.counters.Get(c.UserContext(), addr)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ctr)
}

func (s *FiberServer) incrementCounterHandler(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctr, err := s.counters.Increment(c.UserContext(), addr)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ctr)
}

func (s *FiberServer) decrementCounterHandler(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctr, err := s.counters.Decrement(c.UserContext(), addr)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ctr)
}

func (s *FiberServer) setCounterHandler(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req struct {
		Value *uint8 `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil || req.Value == nil {
		return badRequest(c, "value must be between 0 and 255")
	}

	ctr, err := s.counters.Set(c.UserContext(), addr, *req.Value)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ctr)
}

func (s *FiberServer) closeCounterHandler(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return errorResponse(c, err)
	}
	payer, err := ledger.ParseAddress(c.Query("payer"))
	if err != nil {
		return errorResponse(c, err)
	}

	refund, err := s.counters.Close(c.UserContext(), payer, addr)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"address": addr,
		"payer":   payer,
		"refund":  amountView(refund),
	})
}

// gameStates collects the state of every initialized game.
func (s *FiberServer) gameStates(ctx context.Context) map[game.GameType]*game.GameState {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	states := make(map[game.GameType]*game.GameState)
	for _, gameType := range s.gameFactory.Types() {
		engine, _ := s.gameFactory.GetEngine(gameType)
		if state, err := engine.State(ctx); err == nil {
			states[gameType] = state
		}
	}
	return states
}
