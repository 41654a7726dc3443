// Package backup copies the durable store file to a timestamped
// snapshot on a cron schedule.
package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/config"
)

type Scheduler struct {
	source   string
	dir      string
	schedule string
	log      *zap.Logger
	cron     *rcron.Cron
}

func New(cfg config.BackupConfig, storePath string, log *zap.Logger) *Scheduler {
	return &Scheduler{
		source:   storePath,
		dir:      cfg.Dir,
		schedule: cfg.Schedule,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	s.cron = rcron.New(rcron.WithSeconds())
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(); err != nil {
			s.log.Warn("store backup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register backup job %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.log.Info("backup scheduler started",
		zap.String("schedule", s.schedule),
		zap.String("dir", s.dir),
	)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce copies the current store file. A store that does not exist
// yet is not an error; there is simply nothing to back up.
func (s *Scheduler) RunOnce() error {
	data, err := os.ReadFile(s.source)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405Z"), filepath.Base(s.source))
	target := filepath.Join(s.dir, name)
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	s.log.Info("store backed up", zap.String("target", target), zap.Int("bytes", len(data)))
	return nil
}
