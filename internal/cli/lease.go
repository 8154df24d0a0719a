package cli

import (
	"strings"

	"github.com/charmbracelet/log"

	"sitecms/api/internal/config"
	"sitecms/api/internal/lease"
	"sitecms/api/internal/reorder"
)

// openRedisLease shares the API's move lease so CLI moves are rejected while
// a running server is persisting one. No Redis means no lease.
func openRedisLease(cfg config.Config, logger *log.Logger) (reorder.Lease, func(), error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil, nil
	}
	l, err := lease.NewRedisLease(cfg.RedisURL, "", lease.TTLFor(cfg.LeaseTTL, cfg.ReorderTimeout), logger)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}
