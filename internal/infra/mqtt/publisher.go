package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/player"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "magmastream"

// MessagePublisher publishes raw payloads. *Client implements it.
type MessagePublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Publisher is a notification stream that forwards every state update to
// <prefix>/<guild>/<type> and keeps the latest snapshot retained on <prefix>/<guild>/state.
type Publisher struct {
	client MessagePublisher
	prefix string
	qos    byte
}

type message struct {
	SequenceNo uint64            `json:"seq"`
	GuildID    string            `json:"guildId"`
	Type       player.ChangeType `json:"type"`
	Before     player.Snapshot   `json:"before"`
	After      player.Snapshot   `json:"after"`
	Details    any               `json:"details,omitempty"`
	Time       time.Time         `json:"time"`
}

// NewPublisher creates a publisher.
func NewPublisher(client MessagePublisher, prefix string, qos byte) *Publisher {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Publisher{client: client, prefix: prefix, qos: qos}
}

// Topic returns the topic for one kind of update of one guild.
func (p *Publisher) Topic(guildID, kind string) string {
	return p.prefix + "/" + guildID + "/" + kind
}

// Send publishes update. A destroy clears the retained snapshot.
func (p *Publisher) Send(update *player.StateUpdate) error {
	payload, err := json.Marshal(message{
		SequenceNo: update.SequenceNo,
		GuildID:    update.GuildID,
		Type:       update.Type,
		Before:     update.Before,
		After:      update.After,
		Details:    update.Details,
		Time:       update.Time,
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode state update")
	}
	topic := p.Topic(update.GuildID, string(update.Type))
	if err := p.client.Publish(topic, p.qos, false, payload); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", topic)
	}

	state := []byte{}
	if update.Type != player.ChangeDestroy {
		if state, err = json.Marshal(update.After); err != nil {
			return errors.Wrap(err, "failed to encode snapshot")
		}
	}
	if err := p.client.Publish(p.Topic(update.GuildID, "state"), p.qos, true, state); err != nil {
		return errors.Wrapf(err, "failed to publish state of guild %s", update.GuildID)
	}
	zlog.Debug().Msgf("mqtt: published: topic=%s seq=%d bytes=%d", topic, update.SequenceNo, len(payload))
	return nil
}
