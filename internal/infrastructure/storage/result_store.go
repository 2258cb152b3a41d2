package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

const (
	resultExt   = ".json"
	runIDPrefix = 8
)

// ErrResultNotFound is returned when no result is stored under a key
var ErrResultNotFound = errors.New("result not found")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// JSONResultStore implements port.ResultStore with one indented JSON file per run
type JSONResultStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewJSONResultStore creates a store rooted at baseDir
func NewJSONResultStore(baseDir string, logger *zap.Logger) *JSONResultStore {
	return &JSONResultStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Key returns the name a result is stored under: the document's stem and
// extension when known, the invoice id otherwise, followed by the start of
// the run id so that separate runs never share a key
func Key(result *entity.ReconciliationResult) string {
	name := result.InvoiceID
	if result.DocumentInfo.Filename != "" {
		base := filepath.Base(result.DocumentInfo.Filename)
		ext := filepath.Ext(base)
		name = strings.TrimSuffix(base, ext)
		if ext = strings.ToLower(strings.TrimPrefix(ext, ".")); ext != "" {
			name += "_" + ext
		}
	}
	if run := shortRunID(result.RunID); run != "" {
		name += "_" + run
	}
	return SanitizeName(name)
}

func shortRunID(runID string) string {
	runID = strings.ReplaceAll(runID, "-", "")
	if len(runID) > runIDPrefix {
		runID = runID[:runIDPrefix]
	}
	return runID
}

// SanitizeName returns a filesystem-safe version of the name
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" {
		return "unnamed"
	}
	return name
}

// Save writes result and returns the file path
func (s *JSONResultStore) Save(ctx context.Context, result *entity.ReconciliationResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot save nil result")
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		s.logger.Error("Failed to create result directory",
			zap.String("path", s.baseDir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	content, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	key := Key(result)
	if result.RunID == "" {
		key = SanitizeName(key + "_" + shortRunID(uuid.NewString()))
	}
	fullPath := s.path(key)

	tmp, err := os.CreateTemp(s.baseDir, key+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		s.logger.Error("Failed to write result",
			zap.String("path", tmpPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move result into place: %w", err)
	}

	s.logger.Debug("Result saved",
		zap.String("path", fullPath),
		zap.String("run_id", result.RunID),
		zap.Int("size", len(content)))

	return fullPath, nil
}

// Load reads the result stored under key
func (s *JSONResultStore) Load(ctx context.Context, key string) (*entity.ReconciliationResult, error) {
	fullPath := s.path(SanitizeName(key))

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrResultNotFound, key)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var result entity.ReconciliationResult
	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// List returns the stored keys in name order
func (s *JSONResultStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != resultExt {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), resultExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *JSONResultStore) path(key string) string {
	return filepath.Join(s.baseDir, key+resultExt)
}
