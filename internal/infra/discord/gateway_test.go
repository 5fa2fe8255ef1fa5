package discord

import (
	"context"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItzRandom23/magmastream-custom/internal/app/player"
)

type voiceCall struct {
	guildID   snowflake.ID
	channelID *snowflake.ID
	mute      bool
	deaf      bool
}

type fakeUpdater struct {
	calls []voiceCall
}

func (f *fakeUpdater) UpdateVoiceState(_ context.Context, guildID snowflake.ID, channelID *snowflake.ID, selfMute bool, selfDeaf bool) error {
	f.calls = append(f.calls, voiceCall{guildID: guildID, channelID: channelID, mute: selfMute, deaf: selfDeaf})
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

func TestGateway_SendVoiceState(t *testing.T) {
	tests := []struct {
		name        string
		update      player.VoiceStateUpdate
		wantErr     bool
		wantChannel *snowflake.ID
	}{
		{
			name:        "join",
			update:      player.VoiceStateUpdate{GuildID: "100", ChannelID: ptr("200"), SelfDeaf: true},
			wantChannel: ptr(snowflake.ID(200)),
		},
		{
			name:   "leave",
			update: player.VoiceStateUpdate{GuildID: "100"},
		},
		{
			name:    "bad guild",
			update:  player.VoiceStateUpdate{GuildID: "guild"},
			wantErr: true,
		},
		{
			name:    "bad channel",
			update:  player.VoiceStateUpdate{GuildID: "100", ChannelID: ptr("voice")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updater := &fakeUpdater{}
			err := NewGateway(updater).SendVoiceState(context.Background(), tt.update)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, updater.calls)
				return
			}
			require.NoError(t, err)
			require.Len(t, updater.calls, 1)
			assert.Equal(t, snowflake.ID(100), updater.calls[0].guildID)
			assert.Equal(t, tt.wantChannel, updater.calls[0].channelID)
			assert.Equal(t, tt.update.SelfDeaf, updater.calls[0].deaf)
		})
	}
}

func TestBotVoiceState(t *testing.T) {
	bot := snowflake.ID(1)

	_, ok := botVoiceState(bot, discord.VoiceState{UserID: 2, GuildID: 100})
	assert.False(t, ok)

	vs, ok := botVoiceState(bot, discord.VoiceState{UserID: bot, GuildID: 100, ChannelID: ptr(snowflake.ID(200)), SessionID: "s"})
	require.True(t, ok)
	assert.Equal(t, player.VoiceState{GuildID: "100", ChannelID: "200", SessionID: "s"}, vs)

	vs, ok = botVoiceState(bot, discord.VoiceState{UserID: bot, GuildID: 100, SessionID: "s"})
	require.True(t, ok)
	assert.Empty(t, vs.ChannelID)
}

func TestVoiceServer(t *testing.T) {
	_, ok := voiceServer(gateway.EventVoiceServerUpdate{Token: "tok", GuildID: 100})
	assert.False(t, ok)

	vs, ok := voiceServer(gateway.EventVoiceServerUpdate{Token: "tok", GuildID: 100, Endpoint: ptr("eu.discord.media")})
	require.True(t, ok)
	assert.Equal(t, player.VoiceServer{GuildID: "100", Token: "tok", Endpoint: "eu.discord.media"}, vs)
}

type recordingSink struct {
	states  []player.VoiceState
	servers []player.VoiceServer
}

func (r *recordingSink) HandleVoiceState(_ context.Context, vs player.VoiceState) {
	r.states = append(r.states, vs)
}

func (r *recordingSink) HandleVoiceServer(_ context.Context, vs player.VoiceServer) {
	r.servers = append(r.servers, vs)
}

func TestForwarder(t *testing.T) {
	var f Forwarder
	ctx := context.Background()

	f.HandleVoiceState(ctx, player.VoiceState{GuildID: "1"})

	sink := &recordingSink{}
	f.Bind(sink)
	f.HandleVoiceState(ctx, player.VoiceState{GuildID: "2"})
	f.HandleVoiceServer(ctx, player.VoiceServer{GuildID: "2", Token: "tok"})

	assert.Equal(t, []player.VoiceState{{GuildID: "2"}}, sink.states)
	assert.Equal(t, []player.VoiceServer{{GuildID: "2", Token: "tok"}}, sink.servers)
}
