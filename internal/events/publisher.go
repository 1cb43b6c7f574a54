// Package events publishes decoded command/response exchanges to NATS for
// downstream consumers (audit trails, live dashboards). Publishing is
// fire-and-forget; a broker hiccup never affects the session.
package events

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Exchange is one command/response pair observed on a session.
type Exchange struct {
	BridgeID  string `json:"bridge_id"`
	ConnID    string `json:"conn_id"`
	Kind      string `json:"kind"`
	Tag       byte   `json:"tag"`
	Request   string `json:"request,omitempty"`  // hex
	Response  string `json:"response,omitempty"` // hex
	Timestamp int64  `json:"timestamp"`
}

// Publisher emits exchanges on card.uplink.<kind> plus a card.uplink.all
// firehose. A nil *Publisher is a no-op.
type Publisher struct {
	nc       *nats.Conn
	bridgeID string
	log      zerolog.Logger
}

// New returns a publisher over nc. Pass a nil connection to disable.
func New(nc *nats.Conn, bridgeID string, log zerolog.Logger) *Publisher {
	if nc == nil {
		return nil
	}
	return &Publisher{nc: nc, bridgeID: bridgeID, log: log}
}

// Publish emits one exchange. Request/response bytes are hex-encoded in the
// JSON payload.
func (p *Publisher) Publish(connID, kind string, tag byte, request, response []byte) {
	if p == nil {
		return
	}

	ex := Exchange{
		BridgeID:  p.bridgeID,
		ConnID:    connID,
		Kind:      kind,
		Tag:       tag,
		Request:   hex.EncodeToString(request),
		Response:  hex.EncodeToString(response),
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(ex)
	if err != nil {
		p.log.Warn().Err(err).Msg("exchange marshal failed")
		return
	}

	subject := fmt.Sprintf("card.uplink.%s", kind)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("exchange publish failed")
		return
	}
	if err := p.nc.Publish("card.uplink.all", data); err != nil {
		p.log.Warn().Err(err).Msg("exchange firehose publish failed")
	}
}
