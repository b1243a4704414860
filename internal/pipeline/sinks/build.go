package sinks

import (
	"context"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/pipeline"
	memorypublisher "github.com/JakeFAU/rulecrawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/rulecrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/rulecrawler/internal/storage"
	gcsstorage "github.com/JakeFAU/rulecrawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/rulecrawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/rulecrawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/rulecrawler/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/rulecrawler/internal/storage/sqlite"
)

// Deps are the shared collaborators every sink may need.
type Deps struct {
	Logger *zap.Logger
	Clock  crawler.Clock
	IDs    crawler.IDGenerator
	Hasher crawler.Hasher
	// GCPOptions are passed to the Pub/Sub and GCS clients.
	GCPOptions []option.ClientOption
}

// Set is the built fan-out plus handles to the in-process backends so callers
// can inspect what was written.
type Set struct {
	*pipeline.MultiSink
	Memory *memorypublisher.Publisher
	Blobs  *memorystorage.BlobStore
}

// Build instantiates the sinks named in cfg.Pipeline.Sinks, in order. Sinks
// built before a failure are closed.
func Build(ctx context.Context, cfg config.Config, deps Deps) (*Set, error) {
	set := &Set{}
	built := make([]pipeline.Sink, 0, len(cfg.Pipeline.Sinks))
	fail := func(err error) (*Set, error) {
		_ = pipeline.NewMultiSink(built...).Close(ctx)
		return nil, err
	}
	for _, name := range cfg.Pipeline.Sinks {
		switch name {
		case "log":
			built = append(built, NewLog(deps.Logger))
		case "memory":
			set.Memory = memorypublisher.New()
			built = append(built, NewPublish(name, set.Memory, deps.IDs, deps.Clock))
		case "pubsub":
			pub, err := gcppublisher.New(ctx, gcppublisher.Config{
				ProjectID: cfg.PubSub.ProjectID,
				TopicName: cfg.PubSub.TopicName,
			}, deps.GCPOptions...)
			if err != nil {
				return fail(err)
			}
			built = append(built, NewPublish(name, pub, deps.IDs, deps.Clock))
		case "blob":
			blobs, err := buildBlobStore(ctx, cfg.Storage, deps, set)
			if err != nil {
				return fail(err)
			}
			built = append(built, NewBlob(blobs, deps.Hasher, cfg.Storage.Prefix, deps.IDs, deps.Clock))
		case "postgres":
			store, err := pgstore.New(ctx, pgstore.Config{
				DSN:      cfg.DB.DSN,
				Table:    cfg.DB.Table,
				MaxConns: int32(cfg.DB.MaxConns), //nolint:gosec // small configured value
			})
			if err != nil {
				return fail(err)
			}
			built = append(built, NewStore(name, store, deps.IDs, deps.Clock))
		case "sqlite":
			store, err := sqlitestore.Open(ctx, cfg.SQLite.Path)
			if err != nil {
				return fail(err)
			}
			built = append(built, NewStore(name, store, deps.IDs, deps.Clock))
		default:
			return fail(fmt.Errorf("%w: unknown record sink %q", crawler.ErrConfig, name))
		}
	}
	set.MultiSink = pipeline.NewMultiSink(built...)
	return set, nil
}

func buildBlobStore(ctx context.Context, cfg config.StorageConfig, deps Deps, set *Set) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "memory":
		set.Blobs = memorystorage.NewBlobStore()
		return set.Blobs, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx, deps.GCPOptions...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gcs blob store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", crawler.ErrConfig, cfg.Backend)
	}
}
