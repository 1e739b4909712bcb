// Package adaptnats publishes step updates to NATS subscribers.
package adaptnats

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"stepcounter/internal/domain"
	"stepcounter/internal/logfields"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "steps.updates"

type publishConn interface {
	Publish(subj string, data []byte) error
}

// Publisher sends every step update as JSON on "<subject>.<userID>".
type Publisher struct {
	conn    *nats.Conn
	pub     publishConn
	subject string
	logger  *slog.Logger
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("stepcounter"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p := newPublisher(conn, subject, logger)
	p.conn = conn
	logger.Info("NATS publisher connected", slog.String("url", url), slog.String("subject", p.subject))
	return p, nil
}

func newPublisher(pub publishConn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{pub: pub, subject: subject, logger: logger}
}

// Subject returns the subject updates for userID are published on.
func (p *Publisher) Subject(userID int64) string {
	return p.subject + "." + strconv.FormatInt(userID, 10)
}

// Publish sends u. Failures are logged and otherwise ignored so a broker
// outage never affects step accounting.
func (p *Publisher) Publish(u domain.StepUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		p.logger.Error("Failed to marshal step update", logfields.Error(err))
		return
	}
	if err := p.pub.Publish(p.Subject(u.UserID), data); err != nil {
		p.logger.Warn("Failed to publish step update",
			logfields.UserID(u.UserID), logfields.Steps(u.StepsToday), logfields.Error(err))
		return
	}
	p.logger.Debug("Published step update",
		logfields.UserID(u.UserID), logfields.Steps(u.StepsToday))
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
