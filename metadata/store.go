package metadata

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"datasetscraper/models"
	"datasetscraper/parser"

	log "github.com/sirupsen/logrus"
)

// Store keeps the dataset's metadata.json: one ImageRecord per unique file
// content. It is safe for use from several goroutines in one process.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns every record. A missing file is an empty store.
func (s *Store) Load() ([]models.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]models.ImageRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.ImageRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading metadata file: %w", err)
	}
	if len(data) == 0 {
		return []models.ImageRecord{}, nil
	}

	var records []models.ImageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error unmarshalling metadata %s: %w", s.path, err)
	}
	return records, nil
}

// save replaces the file through a temp file in the same directory
func (s *Store) save(records []models.ImageRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	jsonData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Append adds records whose content hash is not in the store yet and
// returns how many were added. Records without a hash are hashed from
// FilePath; empty size and times are filled from the file.
func (s *Store) Append(records ...models.ImageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return 0, err
	}

	hashes := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		if r.FileHash != "" {
			hashes[r.FileHash] = struct{}{}
		}
	}

	added := 0
	for _, r := range records {
		if err := s.complete(&r); err != nil {
			log.Warnf("[Metadata] Skipping %s: %v", r.FilePath, err)
			continue
		}
		if _, dup := hashes[r.FileHash]; dup {
			log.Debugf("[Metadata] %s already recorded (hash %.12s)", r.Filename, r.FileHash)
			continue
		}
		hashes[r.FileHash] = struct{}{}
		existing = append(existing, r)
		added++
	}

	if added == 0 {
		return 0, nil
	}
	if err := s.save(existing); err != nil {
		return 0, fmt.Errorf("error saving metadata: %w", err)
	}
	log.Debugf("[Metadata] Added %d record(s), %d total", added, len(existing))
	return added, nil
}

// complete fills the fields Append relies on
func (s *Store) complete(r *models.ImageRecord) error {
	if r.Filename == "" {
		r.Filename = filepath.Base(r.FilePath)
	}
	if r.FileHash == "" {
		h, err := HashFile(r.FilePath)
		if err != nil {
			return err
		}
		r.FileHash = h
	}
	if r.FileSize == 0 || r.ModifiedTime.IsZero() {
		if info, err := os.Stat(r.FilePath); err == nil {
			if r.FileSize == 0 {
				r.FileSize = info.Size()
			}
			if r.ModifiedTime.IsZero() {
				r.ModifiedTime = info.ModTime()
			}
		}
	}
	if r.CreatedTime.IsZero() {
		r.CreatedTime = r.ModifiedTime
	}
	if r.AddedToDataset.IsZero() {
		r.AddedToDataset = s.now()
	}
	return nil
}

// NewRecord describes an image file already on disk
func NewRecord(path string, kind models.SourceKind, sourceInfo string) (models.ImageRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.ImageRecord{}, err
	}
	hash, err := HashFile(path)
	if err != nil {
		return models.ImageRecord{}, err
	}
	return models.ImageRecord{
		Filename:     filepath.Base(path),
		FilePath:     path,
		SourceType:   kind,
		SourceInfo:   sourceInfo,
		FileSize:     info.Size(),
		CreatedTime:  info.ModTime(),
		ModifiedTime: info.ModTime(),
		FileHash:     hash,
	}, nil
}

// AddFiles records image files, e.g. frames sampled from one video
func (s *Store) AddFiles(paths []string, kind models.SourceKind, sourceInfo string) (int, error) {
	records := make([]models.ImageRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := NewRecord(p, kind, sourceInfo)
		if err != nil {
			log.Warnf("[Metadata] Cannot describe %s: %v", p, err)
			continue
		}
		records = append(records, rec)
	}
	return s.Append(records...)
}

// AddDirectory records every image file directly inside dir
func (s *Store) AddDirectory(dir string, kind models.SourceKind, sourceInfo string) (int, error) {
	files, err := parser.ListImageFiles(dir)
	if err != nil {
		return 0, err
	}
	return s.AddFiles(files, kind, sourceInfo)
}

var csvHeader = []string{
	"filename", "filepath", "source_type", "source_info", "file_size",
	"created_time", "modified_time", "file_hash", "added_to_dataset",
}

// ExportCSV writes every record as CSV with a header row
func (s *Store) ExportCSV(w io.Writer) (int, error) {
	records, err := s.Load()
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	for _, r := range records {
		row := []string{
			r.Filename,
			r.FilePath,
			string(r.SourceType),
			r.SourceInfo,
			strconv.FormatInt(r.FileSize, 10),
			formatTime(r.CreatedTime),
			formatTime(r.ModifiedTime),
			r.FileHash,
			formatTime(r.AddedToDataset),
		}
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(records), cw.Error()
}

// ExportCSVFile writes the CSV export to path
func (s *Store) ExportCSVFile(path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := s.ExportCSV(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	log.Infof("[Metadata] Exported %d record(s) to %s", n, path)
	return n, nil
}

// FindDuplicates groups records sharing a content hash, groups of two or more only
func (s *Store) FindDuplicates() ([][]models.ImageRecord, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	return duplicateGroups(records), nil
}

func duplicateGroups(records []models.ImageRecord) [][]models.ImageRecord {
	byHash := make(map[string][]models.ImageRecord)
	var order []string
	for _, r := range records {
		if r.FileHash == "" {
			continue
		}
		if _, ok := byHash[r.FileHash]; !ok {
			order = append(order, r.FileHash)
		}
		byHash[r.FileHash] = append(byHash[r.FileHash], r)
	}

	var groups [][]models.ImageRecord
	for _, h := range order {
		if len(byHash[h]) > 1 {
			groups = append(groups, byHash[h])
		}
	}
	return groups
}

// CleanupBroken drops records whose file no longer exists
func (s *Store) CleanupBroken() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return 0, err
	}

	valid := make([]models.ImageRecord, 0, len(records))
	for _, r := range records {
		if r.FilePath != "" {
			if _, err := os.Stat(r.FilePath); err == nil {
				valid = append(valid, r)
				continue
			}
		}
		log.Debugf("[Metadata] Dropping missing %s", r.FilePath)
	}

	removed := len(records) - len(valid)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(valid); err != nil {
		return 0, fmt.Errorf("error saving metadata: %w", err)
	}
	log.Infof("[Metadata] Removed %d broken metadata entries", removed)
	return removed, nil
}

// Report is the dataset summary
type Report struct {
	FileCounts      map[string]int            `json:"file_counts"`
	TotalFiles      int                       `json:"total_files"`
	MetadataEntries int                       `json:"metadata_entries"`
	SourceBreakdown map[models.SourceKind]int `json:"source_breakdown"`
	DuplicateGroups int                       `json:"duplicate_groups"`
	TotalDuplicates int                       `json:"total_duplicates"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}

// DirNames returns the FileCounts keys in display order
func (r *Report) DirNames() []string {
	names := make([]string, 0, len(r.FileCounts))
	for name := range r.FileCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary counts files in the named dataset directories and breaks the
// metadata down by source. Missing directories count as empty.
func (s *Store) Summary(dirs map[string]string) (*Report, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}

	report := &Report{
		FileCounts:      make(map[string]int, len(dirs)),
		MetadataEntries: len(records),
		SourceBreakdown: make(map[models.SourceKind]int),
		GeneratedAt:     s.now(),
	}

	for name, dir := range dirs {
		n := countFiles(dir)
		report.FileCounts[name] = n
		report.TotalFiles += n
	}

	for _, r := range records {
		kind := r.SourceType
		if kind == "" {
			kind = "unknown"
		}
		report.SourceBreakdown[kind]++
	}

	groups := duplicateGroups(records)
	report.DuplicateGroups = len(groups)
	for _, g := range groups {
		report.TotalDuplicates += len(g) - 1
	}
	return report, nil
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n
}

// HashFile returns the hex sha256 of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
