// Package interchange persists pipeline stages as JSON files so each mode
// (scrape, process, store, notify) can run as a separate invocation.
//
// Layout under the data directory:
//
//	raw_ideas_YYYYMMDD.json
//	processed/processed_ideas_YYYYMMDD_HHMMSS.json
//	processed/relevant_ideas_YYYYMMDD_HHMMSS.json
package interchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
	"github.com/lueurxax/idea-aggregator/internal/process/normalize"
)

const (
	processedDir = "processed"

	rawPrefix       = "raw_ideas_"
	processedPrefix = "processed_ideas_"
	relevantPrefix  = "relevant_ideas_"
	jsonExt         = ".json"

	dayLayout   = "20060102"
	stampLayout = "20060102_150405"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Dir is a data directory holding interchange files.
type Dir struct {
	root string
	now  func() time.Time
}

// Files names the outputs of one processing run. Relevant is empty when no
// idea passed the filter.
type Files struct {
	Processed string
	Relevant  string
}

// Open creates root and its processed/ subdirectory when missing.
func Open(root string) (*Dir, error) {
	if err := os.MkdirAll(filepath.Join(root, processedDir), dirPerm); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	return &Dir{root: root, now: time.Now}, nil
}

// WriteRaw saves freshly collected ideas as the day's raw file.
func (d *Dir) WriteRaw(ideas []domain.Idea) (string, error) {
	path := filepath.Join(d.root, rawPrefix+d.now().Format(dayLayout)+jsonExt)

	if err := writeJSON(path, orEmpty(ideas)); err != nil {
		return "", err
	}

	return path, nil
}

// WriteProcessed saves every processed idea and, when there are any, the
// relevant subset. Both files share one timestamp.
func (d *Dir) WriteProcessed(processed, relevant []domain.Idea) (Files, error) {
	stamp := d.now().Format(stampLayout)

	files := Files{Processed: filepath.Join(d.root, processedDir, processedPrefix+stamp+jsonExt)}
	if err := writeJSON(files.Processed, orEmpty(processed)); err != nil {
		return Files{}, err
	}

	if len(relevant) == 0 {
		return files, nil
	}

	files.Relevant = filepath.Join(d.root, processedDir, relevantPrefix+stamp+jsonExt)
	if err := writeJSON(files.Relevant, relevant); err != nil {
		return Files{}, err
	}

	return files, nil
}

// LatestRaw returns the most recently modified raw file.
func (d *Dir) LatestRaw() (string, error) {
	return latest(filepath.Join(d.root, rawPrefix+"*"+jsonExt))
}

// LatestProcessed returns the most recently modified processed file.
func (d *Dir) LatestProcessed() (string, error) {
	return latest(filepath.Join(d.root, processedDir, processedPrefix+"*"+jsonExt))
}

// LatestRelevant returns the most recently modified relevant file.
func (d *Dir) LatestRelevant() (string, error) {
	return latest(filepath.Join(d.root, processedDir, relevantPrefix+"*"+jsonExt))
}

// fileIdea also accepts "hash", the fingerprint key of older files.
type fileIdea struct {
	domain.Idea
	Hash string `json:"hash"`
}

// Load reads ideas from an interchange file. A missing fingerprint is taken
// from "hash" or computed from the content.
func Load(path string) ([]domain.Idea, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var items []fileIdea
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	ideas := make([]domain.Idea, 0, len(items))

	for _, item := range items {
		idea := item.Idea
		if idea.Fingerprint == "" {
			idea.Fingerprint = item.Hash
		}

		ideas = append(ideas, normalize.WithFingerprint(idea))
	}

	return ideas, nil
}

func latest(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}

	var (
		best    string
		bestMod time.Time
	)

	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}

		// Names embed the timestamp, so they break modification-time ties.
		if best == "" || info.ModTime().After(bestMod) || (info.ModTime().Equal(bestMod) && m > best) {
			best, bestMod = m, info.ModTime()
		}
	}

	if best == "" {
		return "", fmt.Errorf("%w: %s", apperrors.ErrNoInputFile, pattern)
	}

	return best, nil
}

// orEmpty keeps files a JSON array when there is nothing to write.
func orEmpty(ideas []domain.Idea) []domain.Idea {
	if ideas == nil {
		return []domain.Idea{}
	}

	return ideas
}

// writeJSON writes v indented, through a temporary file renamed into place.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("rename into %s: %w", path, err)
	}

	return nil
}
