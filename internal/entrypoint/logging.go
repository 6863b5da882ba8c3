package entrypoint

import (
	"io"
	"log"
	"os"

	"github.com/mrlokans/flashshelf/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging tees the standard logger into a rotated file when LOG_FILE
// is set. The returned closer is a no-op otherwise.
func setupLogging(cfg config.Log) io.Closer {
	if cfg.File == "" {
		return nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	log.Printf("Logging to %s (max %d MB, %d backups)", cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
