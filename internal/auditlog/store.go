package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/opsdeck/authguard/internal/models"
)

const (
	filePrefix = "auth-"
	fileSuffix = ".log"
	dateLayout = "2006-01-02"

	// ArchiveDirName is the subdirectory partitions are relocated into
	ArchiveDirName = "archive"
)

var partitionNameRe = regexp.MustCompile(`^auth-(\d{4}-\d{2}-\d{2})\.log$`)

// PartitionInfo describes one live partition file
type PartitionInfo struct {
	Filename   string    `json:"filename"`
	Date       string    `json:"date"`
	Size       int64     `json:"size"`
	EntryCount int       `json:"entryCount"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Store is an append-only, date-partitioned record store for authentication
// events: one JSON-lines file per calendar day under a single directory, an
// archive/ subdirectory for relocated old partitions, and no index — the
// directory listing is the source of truth for which partitions exist.
//
// Each append is a single write of one line, so concurrent appenders from
// multiple processes cannot interleave a partial record. Physical append
// order is not chronological order; readers sort by createdAt if they care.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates the store and its base directory
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log dir: %w", err)
	}
	return &Store{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the store's base directory
func (s *Store) Dir() string {
	return s.dir
}

// PartitionName returns the partition filename for a timestamp's calendar day
func PartitionName(t time.Time) string {
	return filePrefix + t.Format(dateLayout) + fileSuffix
}

// ValidPartitionName reports whether a filename has the exact partition shape.
// Anything else is rejected before the filesystem is touched, which is what
// keeps the download surface free of path traversal.
func ValidPartitionName(name string) bool {
	return partitionNameRe.MatchString(name)
}

// PartitionPath validates a filename and resolves it inside the store dir
func (s *Store) PartitionPath(name string) (string, error) {
	if !ValidPartitionName(name) {
		return "", fmt.Errorf("%w: invalid partition filename", models.ErrBadRequest)
	}
	return filepath.Join(s.dir, name), nil
}

// Append durably writes one entry to its day's partition. One write call per
// entry: a crash right after a successful Append can lose at most the entry
// in flight, never previously appended ones.
func (s *Store) Append(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	line = append(line, '\n')

	// Safe to race with other processes creating the same directory
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure audit log dir: %w", err)
	}

	path := filepath.Join(s.dir, PartitionName(e.CreatedAt))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open partition: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryRange returns every entry whose partition day falls between start and
// end inclusive and that passes the filter. Missing partitions are silently
// skipped; a malformed line is skipped with a warning, never a query failure.
// No ordering guarantee — callers sort by CreatedAt if they need it.
func (s *Store) QueryRange(start, end time.Time, f Filter) ([]Entry, error) {
	startDay := truncateToDay(start)
	endDay := truncateToDay(end)

	var entries []Entry
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		partEntries, err := s.readPartition(filepath.Join(s.dir, PartitionName(day)), f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, partEntries...)
	}
	return entries, nil
}

// QueryToday is QueryRange bounded to the current calendar day
func (s *Store) QueryToday(f Filter) ([]Entry, error) {
	now := s.now()
	return s.QueryRange(now, now, f)
}

func (s *Store) readPartition(path string, f Filter) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // the day simply had no events
		}
		return nil, fmt.Errorf("failed to open partition %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// One corrupted line must not poison the rest of the partition
			s.logger.Warn("skipping malformed audit log line",
				slog.String("partition", filepath.Base(path)),
				slog.Any("error", err),
			)
			continue
		}
		if f.matches(e) {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// ListPartitions enumerates live partition files, newest date first
func (s *Store) ListPartitions() ([]PartitionInfo, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log dir: %w", err)
	}

	infos := make([]PartitionInfo, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		m := partitionNameRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		count, err := s.countEntries(filepath.Join(s.dir, de.Name()))
		if err != nil {
			s.logger.Warn("failed to count partition entries",
				slog.String("partition", de.Name()),
				slog.Any("error", err),
			)
		}
		infos = append(infos, PartitionInfo{
			Filename:   de.Name(),
			Date:       m[1],
			Size:       fi.Size(),
			EntryCount: count,
			ModifiedAt: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Date > infos[j].Date })
	return infos, nil
}

func (s *Store) countEntries(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	return count, scanner.Err()
}

// Archive relocates every partition strictly older than daysToKeep days into
// the archive subdirectory and returns how many files moved. Idempotent: a
// re-run archives only what remains. A failure to move one partition is
// logged and skipped rather than aborting the whole sweep.
func (s *Store) Archive(daysToKeep int) (int, error) {
	if daysToKeep <= 0 {
		return 0, fmt.Errorf("%w: daysToKeep must be a positive number", models.ErrBadRequest)
	}

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list audit log dir: %w", err)
	}

	cutoff := truncateToDay(s.now()).AddDate(0, 0, -daysToKeep)
	archiveDir := filepath.Join(s.dir, ArchiveDirName)

	archived := 0
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		m := partitionNameRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		day, err := time.ParseInLocation(dateLayout, m[1], time.Local)
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}

		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return archived, fmt.Errorf("failed to create archive dir: %w", err)
		}
		if err := os.Rename(filepath.Join(s.dir, de.Name()), filepath.Join(archiveDir, de.Name())); err != nil {
			s.logger.Error("failed to archive partition",
				slog.String("partition", de.Name()),
				slog.Any("error", err),
			)
			continue
		}
		archived++
	}
	return archived, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
