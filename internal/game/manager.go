package game

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DEFAULT_QUEUE_SIZE     = 1000
	DEFAULT_SETTLE_TIMEOUT = 5 * time.Second
)

// Codes the manager answers with when a request never reaches an engine.
// None of them leaves anything committed.
const (
	CodeQueueFull = "QUEUE_FULL"
	CodeTimeout   = "TIMEOUT"
	CodeStopped   = "STOPPED"
)

// Lifecycle of a queued request. Whichever side moves it out of
// requestQueued first decides whether it runs.
const (
	requestQueued int32 = iota
	requestStarted
	requestAbandoned
)

// Broadcaster receives every committed settlement.
type Broadcaster interface {
	Broadcast(message interface{})
}

// Manager feeds roll requests to the engines one at a time from a single
// goroutine, so settlements against the same game never interleave even
// when the store offers weaker isolation.
type Manager struct {
	factory       *GameFactory
	broadcasters  []Broadcaster
	ctx           context.Context
	rollChannel   chan RollRequest
	stopChan      chan struct{}
	stopOnce      sync.Once
	settleTimeout time.Duration
}

func NewManager(factory *GameFactory, queueSize int, settleTimeout time.Duration, broadcasters ...Broadcaster) *Manager {
	if queueSize <= 0 {
		queueSize = DEFAULT_QUEUE_SIZE
	}
	if settleTimeout <= 0 {
		settleTimeout = DEFAULT_SETTLE_TIMEOUT
	}
	return &Manager{
		factory:       factory,
		broadcasters:  broadcasters,
		ctx:           context.Background(),
		rollChannel:   make(chan RollRequest, queueSize),
		stopChan:      make(chan struct{}),
		settleTimeout: settleTimeout,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	go m.settleLoop()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stopChan:
		return true
	default:
		return false
	}
}

// RollDice queues a roll and waits for its settlement. A response coded
// TIMEOUT, QUEUE_FULL or STOPPED means the roll was not committed: a roll
// that is still queued when the timeout fires is abandoned, and one already
// settling has its context cancelled and is waited for.
func (m *Manager) RollDice(req RollRequest) RollResponse {
	if m.stopped() {
		return RollResponse{Success: false, Message: "Settlement loop stopped", Code: CodeStopped}
	}

	ctx, cancel := context.WithCancel(m.ctx)
	defer cancel()

	respChan := make(chan RollResponse, 1)
	req.ResponseChan = respChan
	req.ctx = ctx
	req.state = new(atomic.Int32)

	select {
	case m.rollChannel <- req:
	default:
		return RollResponse{Success: false, Message: "Settlement queue full", Code: CodeQueueFull}
	}

	timer := time.NewTimer(m.settleTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		return resp
	case <-m.stopChan:
		if req.state.CompareAndSwap(requestQueued, requestAbandoned) {
			return RollResponse{Success: false, Message: "Settlement loop stopped", Code: CodeStopped}
		}
	case <-timer.C:
		if req.state.CompareAndSwap(requestQueued, requestAbandoned) {
			return RollResponse{Success: false, Message: "Settlement timeout", Code: CodeTimeout}
		}
	}

	// Already settling: stop it and report what actually happened.
	cancel()
	resp := <-respChan
	if !resp.Success && ctx.Err() != nil {
		resp.Message = "Settlement timeout"
		resp.Code = CodeTimeout
	}
	return resp
}

func (m *Manager) settleLoop() {
	for {
		select {
		case <-m.stopChan:
			log.Println("[MANAGER] Settlement loop stopped")
			return
		case req := <-m.rollChannel:
			m.processRoll(req)
		}
	}
}

func (m *Manager) processRoll(req RollRequest) {
	if req.state != nil && !req.state.CompareAndSwap(requestQueued, requestStarted) {
		return
	}
	ctx := req.ctx
	if ctx == nil {
		ctx = m.ctx
	}

	resp := RollResponse{}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	engine, exists := m.factory.GetEngine(req.Game)
	if !exists {
		resp.err = fmt.Errorf("%w: %q", ErrUnknownGame, string(req.Game))
		resp.Message = resp.err.Error()
		resp.Code = CodeUnknownGame
		return
	}

	settlement, err := engine.RollDice(ctx, req.Player, Bet{
		Amount: req.Amount,
		Type:   req.BetType,
		Value:  req.BetValue,
	})
	if err != nil {
		resp.err = err
		resp.Message = err.Error()
		resp.Code = ErrorCode(err)
		return
	}

	resp.Success = true
	resp.Message = "Dice rolled successfully"
	resp.Settlement = settlement

	for _, b := range m.broadcasters {
		b.Broadcast(WSMessage{Type: "settlement", Data: settlement})
	}
}
