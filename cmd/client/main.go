package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/adapters/ice"
	"github.com/dkeye/Babel/internal/adapters/media"
	"github.com/dkeye/Babel/internal/adapters/realtime"
	"github.com/dkeye/Babel/internal/adapters/rtc"
	"github.com/dkeye/Babel/internal/app/mesh"
	"github.com/dkeye/Babel/internal/config"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

func roleFromConfig(cfg *config.Client) (domain.Role, error) {
	switch cfg.Role {
	case "interpreter":
		return domain.InterpreterRole(domain.LanguageCode(cfg.Language)), nil
	case "host":
		return domain.HostRole(), nil
	case "admin":
		return domain.AdminRole(), nil
	default:
		return domain.ParticipantRole(), nil
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.LoadClient()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	role, err := roleFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("bad role config")
	}
	identity, err := domain.NewIdentity(domain.UserID(cfg.UserID), cfg.Name, role)
	if err != nil {
		log.Fatal().Err(err).Msg("bad identity config")
	}

	discoverer := ice.NewDiscoverer(cfg.ICEConfigURL)

	coordinator := mesh.New(mesh.Deps{
		Transport:   realtime.NewWSTransport(cfg.SignalURL),
		Connector:   rtc.NewPeerLink,
		Devices:     media.NewSyntheticDevices(),
		DiscoverICE: discoverer.Discover,
		OnChange: func(peers []core.RemotePeer) {
			for _, p := range peers {
				log.Info().
					Str("peer", string(p.UserID)).
					Str("role", p.Role.Kind.String()).
					Str("state", p.State.String()).
					Bool("mic", p.MicOn).
					Msg("peer update")
			}
		},
		OnNotice: func(n core.Notice) {
			switch n.Kind {
			case core.NoticeObserverMode:
				log.Warn().Err(n.Err).Msg("joined in observer mode")
			case core.NoticePeerState:
				log.Info().Str("peer", string(n.Peer)).Str("state", n.State.String()).Msg("peer state")
			case core.NoticeSignalingDown:
				log.Warn().Err(n.Err).Msg("signaling down, reconnecting")
			}
		},
	})
	defer coordinator.Leave()

	room := domain.Room{ID: domain.RoomID(cfg.Room)}
	devCfg := core.DeviceConfig{Audio: cfg.Audio, Video: cfg.Video}
	if err := coordinator.Join(ctx, room, identity, devCfg); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	log.Info().Str("room", cfg.Room).Str("user", string(identity.UserID)).Msg("joined")

	<-ctx.Done()
	log.Info().Msg("leaving room")
}
