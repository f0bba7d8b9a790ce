package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/schollz/progressbar/v3"

	"cabotin-go/internal/game"
	"cabotin-go/internal/infrastructure/aws"
	"cabotin-go/internal/words"
)

// modelPath returns a local path for the configured model, downloading it
// from S3 first if needed.
func modelPath(ctx context.Context) (string, error) {
	if !cfg.ModelFromS3() {
		return cfg.ModelFile, nil
	}

	awsCfg, err := aws.NewAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return "", err
	}
	logger.Info("downloading word model", "url", cfg.ModelFile)
	return aws.DownloadModel(ctx, awsCfg.S3, cfg.ModelFile, cfg.ModelCacheDir)
}

func loadWords(ctx context.Context) (*words.Store, error) {
	path, err := modelPath(ctx)
	if err != nil {
		return nil, err
	}

	// Created on the first callback, once the entry count is known.
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	progress := func(loaded, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Loading words[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}
		_ = bar.Set(loaded)
	}

	logger.Info("loading word model, this may take some time", "path", path)
	store, err := words.Load(path,
		words.Normalize(cfg.NormalizeVectors),
		words.WithProgress(progress),
	)
	if err != nil {
		return nil, fmt.Errorf("could not load word model: %w", err)
	}
	logger.Info("done loading word model",
		"terms", store.Len(), "dim", store.Dim(), "fingerprint", store.Fingerprint())
	return store, nil
}

// openDB connects and applies pending migrations.
func openDB() (*sqlx.DB, error) {
	db, err := game.OpenDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := game.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newGameService wires the vocabulary, the database and the optional
// thesaurus cache. cleanup releases all of them.
func newGameService(ctx context.Context) (game.GameService, func(), error) {
	ws, err := loadWords(ctx)
	if err != nil {
		return nil, nil, err
	}

	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}

	opts := game.ServiceOptions{
		Workers:      cfg.WorkerCount,
		Queue:        cfg.WorkerQueue,
		DefaultCount: cfg.ThesaurusDefaultCount,
		MaxCount:     cfg.ThesaurusMaxCount,
		Logger:       logger,
	}

	var cache *words.ThesaurusCache
	if cfg.ThesaurusCachePath != "" {
		cache, err = words.OpenThesaurusCache(cfg.ThesaurusCachePath, ws.Fingerprint())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		opts.Cache = cache
	}

	service, err := game.NewGameService(ctx, game.NewSQLStore(db), ws, opts)
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		db.Close()
		return nil, nil, fmt.Errorf("could not start game: %w", err)
	}

	cleanup := func() {
		service.Close()
		if cache != nil {
			cache.Close()
		}
		db.Close()
	}
	return service, cleanup, nil
}
