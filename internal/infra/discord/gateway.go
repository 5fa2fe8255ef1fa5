// Package discord connects players to the Discord gateway: it sends voice joins and
// leaves, and forwards the bot's voice credentials to the player manager.
package discord

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/player"
)

// VoiceUpdater sends voice state updates over the gateway. *bot.Client implements it.
type VoiceUpdater interface {
	UpdateVoiceState(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, selfMute bool, selfDeaf bool) error
}

// VoiceSink receives the bot's voice credentials.
type VoiceSink interface {
	HandleVoiceState(ctx context.Context, vs player.VoiceState)
	HandleVoiceServer(ctx context.Context, vs player.VoiceServer)
}

// Gateway implements player.Gateway on a Discord client.
type Gateway struct {
	updater VoiceUpdater
}

// NewGateway creates a gateway adapter.
func NewGateway(updater VoiceUpdater) *Gateway {
	return &Gateway{updater: updater}
}

// SendVoiceState joins the channel in update, or leaves voice when it has none.
func (g *Gateway) SendVoiceState(ctx context.Context, update player.VoiceStateUpdate) error {
	guildID, err := snowflake.Parse(update.GuildID)
	if err != nil {
		return errors.Wrapf(err, "invalid guild id %q", update.GuildID)
	}
	var channelID *snowflake.ID
	if update.ChannelID != nil {
		id, err := snowflake.Parse(*update.ChannelID)
		if err != nil {
			return errors.Wrapf(err, "invalid channel id %q", *update.ChannelID)
		}
		channelID = &id
	}
	if err := g.updater.UpdateVoiceState(ctx, guildID, channelID, update.SelfMute, update.SelfDeaf); err != nil {
		return errors.Wrap(err, "failed to update voice state")
	}
	return nil
}

// New creates a Discord client that forwards its own voice events to sink.
func New(token string, sink VoiceSink) (*bot.Client, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildVoiceStates,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagVoiceStates),
		),
		bot.WithEventListenerFunc(onVoiceStateUpdate(sink)),
		bot.WithEventListenerFunc(onVoiceServerUpdate(sink)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord client")
	}
	return client, nil
}

func onVoiceStateUpdate(sink VoiceSink) func(*events.GuildVoiceStateUpdate) {
	return func(event *events.GuildVoiceStateUpdate) {
		vs, ok := botVoiceState(event.Client().ID(), event.VoiceState)
		if !ok {
			return
		}
		zlog.Debug().Msgf("discord: voice state: guild=%s channel=%s", vs.GuildID, vs.ChannelID)
		sink.HandleVoiceState(context.Background(), vs)
	}
}

func onVoiceServerUpdate(sink VoiceSink) func(*events.VoiceServerUpdate) {
	return func(event *events.VoiceServerUpdate) {
		vs, ok := voiceServer(event.EventVoiceServerUpdate)
		if !ok {
			zlog.Debug().Msgf("discord: voice server without endpoint: guild=%s", event.GuildID)
			return
		}
		sink.HandleVoiceServer(context.Background(), vs)
	}
}

// botVoiceState converts a voice state of the bot itself. States of other users are
// ignored.
func botVoiceState(botID snowflake.ID, state discord.VoiceState) (player.VoiceState, bool) {
	if state.UserID != botID {
		return player.VoiceState{}, false
	}
	vs := player.VoiceState{
		GuildID:   state.GuildID.String(),
		SessionID: state.SessionID,
	}
	if state.ChannelID != nil {
		vs.ChannelID = state.ChannelID.String()
	}
	return vs, true
}

// voiceServer converts a voice server assignment. A nil endpoint means the server is
// being reallocated.
func voiceServer(ev gateway.EventVoiceServerUpdate) (player.VoiceServer, bool) {
	if ev.Endpoint == nil {
		return player.VoiceServer{}, false
	}
	return player.VoiceServer{
		GuildID:  ev.GuildID.String(),
		Token:    ev.Token,
		Endpoint: *ev.Endpoint,
	}, true
}

// Forwarder is a VoiceSink bound to its target after the client exists. Events that
// arrive before Bind are dropped.
type Forwarder struct {
	mu   sync.RWMutex
	sink VoiceSink
}

// Bind sets the target sink.
func (f *Forwarder) Bind(sink VoiceSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

func (f *Forwarder) target() VoiceSink {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sink
}

// HandleVoiceState forwards vs to the bound sink.
func (f *Forwarder) HandleVoiceState(ctx context.Context, vs player.VoiceState) {
	if s := f.target(); s != nil {
		s.HandleVoiceState(ctx, vs)
	}
}

// HandleVoiceServer forwards vs to the bound sink.
func (f *Forwarder) HandleVoiceServer(ctx context.Context, vs player.VoiceServer) {
	if s := f.target(); s != nil {
		s.HandleVoiceServer(ctx, vs)
	}
}
