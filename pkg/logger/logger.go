// Package logger держит глобальный slog логгер сервиса и утилиты plan.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultFilePath файл журнала, если Output=file и путь не задан
const DefaultFilePath = "logs/planner.log"

// Log глобальный логгер; до Init пишет через slog.Default()
var Log = slog.Default()

// Config конфигурация логгера
type Config struct {
	Level      string
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Init JSON логгер в stdout с уровнем level
func Init(level string) {
	InitWithConfig(Config{Level: level})
}

// InitWithConfig заменяет глобальный логгер. Если файл журнала недоступен,
// логгер пишет в stdout и сообщает об этом первой записью.
func InitWithConfig(cfg Config) {
	w, err := openWriter(cfg)

	lvl := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}
	if cfg.Format == "text" {
		Log = slog.New(slog.NewTextHandler(w, opts))
	} else {
		Log = slog.New(slog.NewJSONHandler(w, opts))
	}

	if err != nil {
		Log.Warn("Log file is unavailable, writing to stdout", "path", cfg.FilePath, "error", err)
	}
}

// ParseLevel уровень по имени; неизвестное имя даёт info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriter(cfg Config) (io.Writer, error) {
	switch cfg.Output {
	case "stderr":
		return os.Stderr, nil
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = DefaultFilePath
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return os.Stdout, err
		}
		// ротация по размеру и возрасту
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}, nil
	default:
		return os.Stdout, nil
	}
}

// Fatal пишет ошибку и завершает процесс с кодом 1
func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}
