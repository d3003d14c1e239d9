package logx

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// fileSink {LogDir}/{AppName}-{ts}.log，{AppName}.log 软链到当前文件
type fileSink struct {
	dir, app   string
	mode       RotateMode
	limit      int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
	hour time.Time
}

func newFileSink(cfg Config) (*fileSink, error) {
	s := &fileSink{
		dir:        cfg.LogDir,
		app:        cfg.AppName,
		mode:       cfg.Rotate,
		limit:      int64(cfg.MaxFileSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(time.Now()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileSink) write(now time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.due(now) {
		if err := s.open(now); err != nil {
			return err
		}
	}
	n, err := s.file.WriteString(line)
	s.size += int64(n)
	return err
}

func (s *fileSink) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// due 按大小切分时 limit<=0 表示不限
func (s *fileSink) due(now time.Time) bool {
	if s.file == nil {
		return true
	}
	if s.mode == RotateSize {
		return s.limit > 0 && s.size >= s.limit
	}
	return !now.Truncate(time.Hour).Equal(s.hour)
}

func (s *fileSink) open(now time.Time) error {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	name := s.filename(now)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file, s.size, s.hour = f, info.Size(), now.Truncate(time.Hour)

	link := filepath.Join(s.dir, s.app+".log")
	_ = os.Remove(link)
	_ = os.Symlink(filepath.Base(name), link)

	if s.maxBackups > 0 {
		s.prune()
	}
	return nil
}

func (s *fileSink) filename(now time.Time) string {
	layout := "2006010215"
	if s.mode == RotateSize {
		layout = "20060102150405"
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.log", s.app, now.Format(layout)))
}

// prune 只保留最新的 maxBackups 个文件
func (s *fileSink) prune() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Println("logx: read log dir:", err)
		return
	}

	type rotated struct {
		path string
		mod  time.Time
	}
	var files []rotated
	prefix := s.app + "-"
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, rotated{path: filepath.Join(s.dir, name), mod: info.ModTime()})
	}
	if len(files) <= s.maxBackups {
		return
	}

	slices.SortFunc(files, func(a, b rotated) int { return b.mod.Compare(a.mod) })
	for _, f := range files[s.maxBackups:] {
		_ = os.Remove(f.path)
	}
}
