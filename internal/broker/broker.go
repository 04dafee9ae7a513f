// Package broker publishes settlements to NATS for consumers outside this
// process.
package broker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"dicevault/internal/config"
	"dicevault/internal/game"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

type Publisher struct {
	conn    Conn
	subject string
}

// Connect dials cfg.URL. Call Close on the returned connection at shutdown.
func Connect(cfg config.NATS) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("dicevault"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("[NATS] Disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
	}

	// if token provided
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Infof("[NATS] Connected to %s", conn.ConnectedUrl())
	return conn, nil
}

func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Subject returns the subject a message is published on. Settlements go to
// <subject>.<game>, everything else to <subject>.
func (p *Publisher) Subject(message interface{}) string {
	if msg, ok := message.(game.WSMessage); ok {
		if s, ok := msg.Data.(*game.Settlement); ok && s != nil {
			return p.subject + "." + strings.ToLower(string(s.Game))
		}
	}
	return p.subject
}

// Broadcast implements game.Broadcaster. Publish errors are logged, a
// settlement is committed whether or not anyone hears about it.
func (p *Publisher) Broadcast(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Errorf("[NATS] Marshal error: %v", err)
		return
	}

	subject := p.Subject(message)
	if err := p.conn.Publish(subject, payload); err != nil {
		log.Errorf("Error publishing to topic %s: %s", subject, err)
	}
}
