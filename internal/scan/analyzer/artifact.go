package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkguid"
	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

const (
	// NameLength is the number of random characters in an artifact name.
	NameLength = 20
	// DefaultExtension is appended to every artifact name.
	DefaultExtension = ".ps1"

	defaultMaxAttempts = 5
)

// ArtifactConfig configures where and how artifacts are written.
type ArtifactConfig struct {
	// Dir is the scratch directory. Empty means os.TempDir().
	Dir string
	// Extension is the fixed suffix expected by the analyzer, dot included.
	Extension string
	// Keep leaves artifacts on disk after analysis, for inspection.
	Keep bool
	// MaxAttempts bounds name regeneration on collision.
	MaxAttempts int
}

// ArtifactStore writes uploads to uniquely named files.
type ArtifactStore struct {
	dir         string
	ext         string
	keep        bool
	maxAttempts int
	names       pkguid.StringID
}

// NewArtifactStore builds a store. names may be nil, in which case a
// pkguid.Alphanumeric generator of NameLength is used.
func NewArtifactStore(cfg ArtifactConfig, names pkguid.StringID) *ArtifactStore {
	dir := cfg.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	if names == nil {
		names = pkguid.NewAlphanumeric(NameLength)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}

	return &ArtifactStore{
		dir:         dir,
		ext:         normalizeExtension(cfg.Extension),
		keep:        cfg.Keep,
		maxAttempts: maxAttempts,
		names:       names,
	}
}

// Dir returns the absolute scratch directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Put writes data to a new file and returns where it lives.
//
// The file is created exclusively, so an existing name is never overwritten:
// it is treated as a collision and a new name is generated. A failed write
// removes the partial file before returning.
func (s *ArtifactStore) Put(ctx context.Context, data []byte) (entity.StoredArtifact, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return entity.StoredArtifact{}, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		name := s.names.Generate() + s.ext
		if !IsArtifactName(name, s.ext) {
			return entity.StoredArtifact{}, fmt.Errorf("%w: generated name %q is not a valid artifact name", ErrStorage, name)
		}

		path := filepath.Join(s.dir, name)

		//nolint:gosec // G304: path is built from a generated name
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			slog.WarnContext(ctx, "artifact name collision, regenerating", "name", name, "attempt", attempt)
			continue
		}
		if err != nil {
			return entity.StoredArtifact{}, fmt.Errorf("%w: create %s: %w", ErrStorage, name, err)
		}

		if err := writeAndClose(f, data); err != nil {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				slog.ErrorContext(ctx, "failed to remove partial artifact", "path", path, "error", rmErr)
			}
			return entity.StoredArtifact{}, fmt.Errorf("%w: write %s: %w", ErrStorage, name, err)
		}

		return entity.StoredArtifact{Name: name, Path: path, Size: int64(len(data))}, nil
	}

	return entity.StoredArtifact{}, fmt.Errorf("%w: %w after %d attempts", ErrStorage, ErrNameCollision, s.maxAttempts)
}

// Remove deletes the artifact. A file that is already gone is not an error.
func (s *ArtifactStore) Remove(ctx context.Context, a entity.StoredArtifact) error {
	if a.Path == "" {
		return nil
	}

	if s.keep {
		slog.InfoContext(ctx, "artifact kept for inspection", "path", a.Path)
		return nil
	}

	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", ErrStorage, a.Name, err)
	}

	return nil
}

// IsArtifactName reports whether base is NameLength alphanumeric characters followed by ext.
func IsArtifactName(base, ext string) bool {
	stem, ok := strings.CutSuffix(base, ext)
	if !ok || len(stem) != NameLength {
		return false
	}

	return pkguid.IsAlphanumeric(stem)
}

// normalizeExtension returns ext with a leading dot. Anything other than a dot
// followed by alphanumerics falls back to DefaultExtension, since the suffix
// ends up unescaped in the analyzer command as well.
func normalizeExtension(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if !pkguid.IsAlphanumeric(ext) {
		return DefaultExtension
	}
	return "." + ext
}

func writeAndClose(f *os.File, data []byte) error {
	_, werr := f.Write(data)
	cerr := f.Close()
	return errors.Join(werr, cerr)
}
