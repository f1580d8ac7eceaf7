package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/facealbums/config"
	"github.com/camden-git/facealbums/database"
	"github.com/camden-git/facealbums/media"
	"github.com/camden-git/facealbums/recognition"
	"github.com/camden-git/facealbums/repository"
	"github.com/camden-git/facealbums/services"
)

// app is the wired object graph shared by every command
type app struct {
	cfg    config.Config
	db     *gorm.DB
	sqlDB  *sql.DB
	store  media.Store
	local  *media.LocalStorage // nil with the S3 backend
	oracle *recognition.Rekognition

	images *repository.ImageRepository

	jobs       *services.ProcessingJobService
	albums     *services.AlbumService
	thumbnails *services.ThumbnailService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.InitGormDB(cfg.DatabaseDriver, cfg.DatabaseDSN, logger.Warn)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrateModels(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	a := &app{cfg: cfg, db: db, sqlDB: sqlDB}

	// the oracle reads S3 objects itself; other backends send bytes inline
	inline := true
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		s3Store, err := media.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.AWSAccessKeyID, cfg.AWSSecretKey)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		a.store = s3Store
		inline = false
	default:
		local, err := media.NewLocalStorage(cfg.MediaStoragePath)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		a.store = local
		a.local = local
	}

	a.oracle, err = recognition.NewRekognition(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.AWSAccessKeyID, cfg.AWSSecretKey)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	a.images = repository.NewImageRepository(db)
	faces := repository.NewFaceRepository(db)
	responses := repository.NewAPIResponseRepository(db)

	source := services.NewImageSource(a.store, inline)
	gate := services.NewQualityGate(a.oracle, a.images, responses, source, cfg.LabelMinConfidence)
	engine := services.NewClusteringEngine(a.oracle, a.images, responses, source, cfg.MatchThreshold, cfg.ImageConcurrency)
	a.albums = services.NewAlbumService(repository.NewAlbumRepository(db))
	a.thumbnails = services.NewThumbnailService(
		media.NewProcessor(a.store, cfg.ThumbnailSize),
		faces, a.images, repository.NewThumbnailRepository(db),
		cfg.NumThumbnailWorkers,
	)
	leases := database.NewLeaseStore(sqlDB, cfg.DatabaseDriver, time.Duration(cfg.LeaseTTLSeconds)*time.Second)
	a.jobs = services.NewProcessingJobService(
		a.images, repository.NewJobRepository(db),
		gate, engine, a.albums, a.thumbnails, leases,
		cfg.PageSize, cfg.ImageConcurrency,
	)

	log.Printf("Using %s database, %s storage, page size %d", cfg.DatabaseDriver, cfg.StorageBackend, cfg.PageSize)
	return a, nil
}

func (a *app) Close() {
	if err := a.sqlDB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
