package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "scorelens/internal/errors"
)

// FileValidator checks documents before they are parsed. It is shared by the
// CLI and the upload handler.
type FileValidator struct {
	extensions map[string]bool
	maxBytes   int64
	logger     *slog.Logger
}

// NewFileValidator accepts files with one of extensions and at most maxBytes
// bytes. maxBytes <= 0 disables the size check.
func NewFileValidator(extensions []string, maxBytes int64, logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &FileValidator{
		extensions: exts,
		maxBytes:   maxBytes,
		logger:     logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateUpload checks the name and size of an uploaded document.
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is an Office lock file", base))
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !v.extensions[ext] {
		v.logger.Warn("unsupported file type",
			slog.String("file", base),
			slog.String("extension", ext))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("file %s has unsupported type %q, want one of %s", base, ext, v.allowed()))
	}

	if v.maxBytes > 0 && size > v.maxBytes {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("file %s is %d bytes, limit is %d", base, size, v.maxBytes)).
			WithContext("size", size).
			WithContext("limit", v.maxBytes)
	}
	return nil
}

// ValidateFile checks that path is a readable document of an accepted type
// and size.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("file does not exist", slog.String("file", path))
		return apperrors.NewNotFoundError(path)
	}
	if err != nil {
		return apperrors.NewParsingError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	if info.IsDir() {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}
	if err := v.ValidateUpload(path, info.Size()); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewParsingError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// CollectFiles expands the inputs into a sorted list of documents. Files are
// validated; directories contribute every accepted file directly inside them.
func (v *FileValidator) CollectFiles(inputs []string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err == nil && info.IsDir() {
			found, err := v.scanDirectory(in)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		if err := v.ValidateFile(in); err != nil {
			return nil, err
		}
		files = append(files, in)
	}
	if len(files) == 0 {
		return nil, apperrors.NewAppValidationError("no input documents found")
	}
	sort.Strings(files)
	return files, nil
}

func (v *FileValidator) scanDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read directory %s", dir), err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := v.ValidateFile(path); err != nil {
			v.logger.Debug("skipping file", slog.String("file", path), slog.String("reason", err.Error()))
			continue
		}
		files = append(files, path)
	}
	v.logger.Info("input directory scanned",
		slog.String("directory", dir),
		slog.Int("files_found", len(files)))
	return files, nil
}

// ValidateOutputDirectory ensures dir exists and is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func (v *FileValidator) allowed() string {
	exts := make([]string, 0, len(v.extensions))
	for e := range v.extensions {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
