package batch

import (
	"crypto/sha256"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
)

// IntakeStats summarizes a directory intake.
type IntakeStats struct {
	Scanned  int
	Matched  int
	Accepted int
	Failed   int
}

// IntakeDirectory walks root and builds pending items for every file with an
// allowed extension. Hidden files and directories are skipped. The returned
// order is the walk order, which is also the dispatch order.
func IntakeDirectory(root string, logger *slog.Logger) ([]*entity.DocumentItem, IntakeStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, IntakeStats{}, errors.New("root path is required")
	}

	var items []*entity.DocumentItem
	var stats IntakeStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			stats.Failed++
			logger.Warn("batch.intake.walk_error", "path", path, "error", walkErr)
			return nil
		}
		if isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++

		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		stats.Matched++

		item, err := intakeFile(path)
		if err != nil {
			stats.Failed++
			logger.Warn("batch.intake.read_error", "path", path, "error", err)
			return nil
		}
		items = append(items, item)
		stats.Accepted++
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	logger.Info("batch.intake.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"accepted", stats.Accepted,
		"failed", stats.Failed,
	)
	return items, stats, nil
}

func intakeFile(path string) (*entity.DocumentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return entity.NewDocumentItem(entity.Payload{
		Filename:    filepath.Base(path),
		Size:        int64(len(data)),
		Data:        data,
		ContentHash: sum[:],
	}), nil
}

// RemoveItem drops one item from an intake list before dispatch. This is the
// only supported way to take work out of a batch; once the coordinator has
// started, items run to a terminal state.
func RemoveItem(items []*entity.DocumentItem, id uuid.UUID) []*entity.DocumentItem {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && strings.HasPrefix(base, ".")
}
