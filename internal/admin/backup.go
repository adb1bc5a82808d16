package admin

import (
	"archive/zip"
	"context"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/services"
	"fmt"
	"go.uber.org/zap"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BackupDatabase создает дамп БД Postgres в указанный файл
func BackupDatabase(ctx context.Context, filename string, dsn string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pg_dump", dsn, "-Fc", "-f", filename)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// RestoreDatabase восстанавливает БД из дампа
func RestoreDatabase(ctx context.Context, filename string, dsn string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pg_restore", "-d", dsn, filename)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pg_restore: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// BackupDataDir упаковывает JSON-файлы хранилища в zip
func BackupDataDir(dataDir, filename string) error {
	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		zw.Close()
		out.Close()
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if err := addToZip(zw, filepath.Join(dataDir, name), name); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// CleanOldBackups удаляет все бэкапы старше maxAge в директории dir
func CleanOldBackups(dir string, maxAge time.Duration) (int, error) {
	var files []string
	for _, pattern := range []string{"*backup_*.dump", "*backup_*.zip"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, err
		}
		files = append(files, m...)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) && os.Remove(f) == nil {
			removed++
		}
	}
	return removed, nil
}

// Backup описывает, что и куда копировать
type Backup struct {
	Dir       string
	DataDir   string
	DSN       string
	Retention time.Duration
	Archiver  services.Archiver
}

// Run делает бэкап: pg_dump при заданном DSN, иначе zip каталога данных.
// Возвращает путь к созданному файлу.
func (b Backup) Run(ctx context.Context, prefix string) (string, error) {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102_150405")
	var filename string
	if b.DSN != "" {
		filename = filepath.Join(b.Dir, prefix+"backup_"+stamp+".dump")
		if err := BackupDatabase(ctx, filename, b.DSN); err != nil {
			return "", err
		}
	} else {
		filename = filepath.Join(b.Dir, prefix+"backup_"+stamp+".zip")
		if err := BackupDataDir(b.DataDir, filename); err != nil {
			return "", err
		}
	}
	if b.Archiver != nil {
		contentType := "application/zip"
		if b.DSN != "" {
			contentType = "application/octet-stream"
		}
		key, err := services.ArchiveFile(ctx, b.Archiver, "backups", filename, contentType)
		if err != nil {
			return filename, fmt.Errorf("backup saved locally, upload failed: %w", err)
		}
		logger.Info("backup archived", zap.String("key", key))
	}
	return filename, nil
}

// AutoBackup запускает бэкап и чистку, уведомляет админа об ошибке
func AutoBackup(b Backup) {
	defer logger.NotifyOnPanic("AutoBackup")
	filename, err := b.Run(context.Background(), "auto")
	if err != nil {
		logger.Error("[AUTO BACKUP] backup failed", zap.Error(err))
		logger.NotifyAdmin("Ошибка резервного копирования: " + err.Error())
		if filename == "" {
			return
		}
	}
	retention := b.Retention
	if retention == 0 {
		retention = 31 * 24 * time.Hour
	}
	if n, err := CleanOldBackups(b.Dir, retention); err != nil {
		logger.Error("[AUTO BACKUP] cleanup failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("[AUTO BACKUP] old backups removed", zap.Int("count", n))
	}
	logger.Info("[AUTO BACKUP] backup created", zap.String("file", filename))
}
