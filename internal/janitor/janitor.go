// Package janitor removes leftovers of interrupted saves and expired
// uploads.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/basilfx/uploader/internal/recordstore"
	"github.com/basilfx/uploader/internal/storage"
	"github.com/basilfx/uploader/internal/uploader"
)

type Config struct {
	// Every is the interval between two runs.
	Every time.Duration

	// Retention is how long uploads are kept. Zero keeps them forever.
	Retention time.Duration

	// TmpMaxAge is the age after which unfinished temporary files are
	// removed.
	TmpMaxAge time.Duration

	// BatchSize limits the expired uploads removed per run.
	BatchSize int

	// AdvisoryLockKey is shared by all instances using the same database.
	AdvisoryLockKey int64
}

func DefaultConfig() Config {
	return Config{
		Every:           1 * time.Minute,
		TmpMaxAge:       10 * time.Minute,
		BatchSize:       500,
		AdvisoryLockKey: 9876543,
	}
}

// Locker is implemented by stores that can make sure a single instance
// runs the janitor at a time.
type Locker interface {
	TryLock(ctx context.Context, key int64) (unlock func(), ok bool, err error)
}

type Janitor struct {
	fs    billy.Filesystem
	store recordstore.Store
	cfg   Config
	log   logrus.FieldLogger
	now   func() time.Time
}

// New creates a Janitor for the files in fs. store may be nil, in which
// case only temporary files are cleaned up.
func New(fs billy.Filesystem, store recordstore.Store, cfg Config) *Janitor {
	j := &Janitor{
		fs:    fs,
		store: store,
		cfg:   cfg,
		log:   logrus.WithField("component", "janitor"),
		now:   time.Now,
	}
	if j.cfg.BatchSize <= 0 {
		j.cfg.BatchSize = 500
	}
	if j.cfg.Every <= 0 {
		j.cfg.Every = 1 * time.Minute
	}
	if j.cfg.TmpMaxAge <= 0 {
		j.cfg.TmpMaxAge = 10 * time.Minute
	}
	return j
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Every)
	defer ticker.Stop()

	j.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *Janitor) run(ctx context.Context) {
	if err := j.RunOnce(ctx); err != nil {
		j.log.WithError(err).Warn("cleanup incomplete")
	}
}

func (j *Janitor) RunOnce(ctx context.Context) error {
	if l, ok := j.store.(Locker); ok {
		unlock, locked, err := l.TryLock(ctx, j.cfg.AdvisoryLockKey)
		if err != nil {
			return fmt.Errorf("try lock: %w", err)
		}
		if !locked {
			j.log.Debug("another instance holds the lock")
			return nil
		}
		defer unlock()
	}

	var result *multierror.Error

	if j.store != nil && j.cfg.Retention > 0 {
		if err := j.cleanupExpired(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("cleanup expired: %w", err))
		}
	}

	if err := j.cleanupTmpFiles(); err != nil {
		result = multierror.Append(result, fmt.Errorf("cleanup tmp: %w", err))
	}

	return result.ErrorOrNil()
}

func (j *Janitor) cleanupExpired(ctx context.Context) error {
	records, err := j.store.ListExpired(ctx, j.now().Add(-j.cfg.Retention), j.cfg.BatchSize)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, r := range records {
		if err := storage.RemoveIfExists(j.fs, uploader.CleanPath(r.RelativePath)); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", r.RelativePath, err))
			continue
		}
		if err := j.store.Delete(ctx, r.ID); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete record %s: %w", r.ID, err))
			continue
		}
		j.log.WithFields(logrus.Fields{"id": r.ID, "path": r.RelativePath}).Debug("expired upload removed")
	}
	return result.ErrorOrNil()
}

func (j *Janitor) cleanupTmpFiles() error {
	cutoff := j.now().Add(-j.cfg.TmpMaxAge)

	var stale []string
	err := util.Walk(j.fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), storage.TmpSuffix) {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, p := range stale {
		if err := storage.RemoveIfExists(j.fs, p); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		j.log.WithField("path", p).Debug("stale temporary file removed")
	}
	return result.ErrorOrNil()
}
