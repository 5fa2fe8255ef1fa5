package main

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/node"
	"github.com/ItzRandom23/magmastream-custom/internal/app/player"
	"github.com/ItzRandom23/magmastream-custom/internal/app/resolver"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/catalog"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/config"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lastfm"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/spotify"
)

type nodeSet struct {
	registry *node.Registry
	nodes    []*node.Node
}

// newNodes builds the node registry from the configured nodes.
func newNodes(cfg *config.Config) (*nodeSet, error) {
	set := &nodeSet{registry: node.NewRegistry()}
	for _, nc := range cfg.Nodes {
		opts := nodeOptions(nc)
		if err := opts.Normalize(); err != nil {
			return nil, err
		}
		rpc, err := lavalink.New(lavalink.Config{
			Host:     opts.Host,
			Port:     opts.Port,
			Password: opts.Password,
			Secure:   opts.Secure,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create client for node %s", opts.Identifier)
		}
		n := node.New(opts, rpc)
		if err := set.registry.Add(n); err != nil {
			return nil, err
		}
		set.nodes = append(set.nodes, n)
	}
	return set, nil
}

func nodeOptions(nc config.NodeConfig) node.Options {
	return node.Options{
		Identifier:       nc.Identifier,
		Host:             nc.Host,
		Port:             nc.Port,
		Password:         nc.Password,
		Secure:           nc.Secure,
		Priority:         nc.Priority,
		Resume:           nc.Resume,
		SessionTimeout:   nc.SessionTimeout,
		MaxRetryAttempts: nc.MaxRetryAttempts,
		RetryDelay:       nc.RetryDelay,
	}
}

// attachSockets gives every node its push connection, dispatching to manager.
func (s *nodeSet) attachSockets(cfg *config.Config, userID string, manager *player.Manager) {
	for _, n := range s.nodes {
		opts := n.Options()
		n.SetConn(lavalink.NewSocket(lavalink.SocketConfig{
			Host:             opts.Host,
			Port:             opts.Port,
			Password:         opts.Password,
			Secure:           opts.Secure,
			UserID:           userID,
			ClientName:       cfg.Client.Name,
			Resume:           opts.Resume,
			MaxRetryAttempts: opts.MaxRetryAttempts,
			RetryDelay:       opts.RetryDelay,
		}, manager.NodeHandler(n)))
	}
}

// connect opens every node. A node that cannot be reached is logged and left unusable.
func (s *nodeSet) connect(ctx context.Context) {
	for _, n := range s.nodes {
		if err := n.Connect(ctx); err != nil {
			zlog.Error().Err(err).Msgf("Failed to connect node: id=%s", n.ID())
		}
	}
}

func (s *nodeSet) close() {
	for _, n := range s.nodes {
		if err := n.Close(); err != nil {
			zlog.Warn().Err(err).Msgf("Failed to close node: id=%s", n.ID())
		}
	}
}

// newResolver builds the track resolver on the configured catalog.
func newResolver(ctx context.Context, cfg *config.Config, backend resolver.Backend) (*resolver.Resolver, error) {
	var cat resolver.Catalog
	switch cfg.Resolver.Catalog {
	case config.CatalogProxy:
		c, err := catalog.New(catalog.Config{BaseURL: cfg.Resolver.ProxyURL})
		if err != nil {
			return nil, err
		}
		cat = c
	default:
		c, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		cat = c
	}

	projection, err := track.NewProjection(cfg.Resolver.PartialFields)
	if err != nil {
		return nil, err
	}

	var opts []resolver.Option
	if cfg.LastFM.APIKey != "" {
		lf, err := lastfm.New(lastfm.Config{APIKey: cfg.LastFM.APIKey})
		if err != nil {
			return nil, err
		}
		opts = append(opts, resolver.WithSimilarSource(lf))
	}

	return resolver.New(cat, backend, resolver.Config{
		Limit:             cfg.Resolver.Limit,
		RequestsPerSecond: cfg.Resolver.RequestsPerSecond,
		Burst:             cfg.Resolver.Burst,
		Projection:        projection,
	}, opts...)
}
