package database

import (
	"fmt"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NewNATSConn connects to NATS and keeps reconnecting for as long as the process lives.
func NewNATSConn(cfg *config.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("kindred-backend"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}
