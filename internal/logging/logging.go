// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/djorigin/rpasops/internal/config"
)

// Setup applies the file configuration to the global logger. With a log
// file configured, output goes to stdout and a size-rotated file.
func Setup(cfg *config.FileConfig) error {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if cfg.Log.File == "" {
		log.SetOutput(os.Stdout)
		return nil
	}

	if dir := filepath.Dir(cfg.Log.File); dir != "." && dir != "" {
		if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
			return errMkdir
		}
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	return nil
}
