package config

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/docs"
)

// Storage holds document payload storage configuration
type Storage struct {
	bucket string
}

// Flags returns CLI flags for storage configuration
func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-bucket",
			Usage:       "Cloud Storage bucket for document payloads (empty to serve metadata only)",
			Sources:     cli.EnvVars("QUOKKA_STORAGE_BUCKET"),
			Destination: &s.bucket,
		},
	}
}

// LogValue implements slog.LogValuer
func (s Storage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", s.bucket),
	)
}

// Configure creates a payload storage client. It returns nil without
// error when no bucket is set; document staging is then skipped.
func (s *Storage) Configure(ctx context.Context) (docs.Storage, error) {
	if s.bucket == "" {
		return nil, nil
	}

	return docs.NewStorage(ctx, s.bucket)
}
