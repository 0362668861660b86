package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/repository/firestore"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/repository/memory"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/repository/mongo"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend       string
	mongoURI      string
	mongoDatabase string
	projectID     string
	databaseID    string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (mongo, firestore or memory)",
			Value:       "mongo",
			Sources:     cli.EnvVars("QUOKKA_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "mongo-uri",
			Usage:       "MongoDB connection URI (required when using mongo backend)",
			Value:       "mongodb://localhost:27017",
			Sources:     cli.EnvVars("QUOKKA_MONGO_URI"),
			Destination: &r.mongoURI,
		},
		&cli.StringFlag{
			Name:        "mongo-database",
			Usage:       "MongoDB database name",
			Value:       "quokka",
			Sources:     cli.EnvVars("QUOKKA_MONGO_DATABASE"),
			Destination: &r.mongoDatabase,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("QUOKKA_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("QUOKKA_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Configure initializes and returns a repository based on the configured
// backend. The caller is responsible for calling Close() on the returned
// repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case "mongo":
		if r.mongoURI == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "mongo-uri is required when using mongo backend")
		}
		repo, err := mongo.New(ctx, r.mongoURI, r.mongoDatabase)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize mongo repository")
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, goerr.Wrap(err, "failed to ensure mongo indexes")
		}
		logging.Default().Info("Using MongoDB repository", "database", r.mongoDatabase)
		return repo, nil

	case "firestore":
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory repository (development / fallback mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}
