package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
)

// FileValidator checks the files a stage promised to produce
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateArtifact checks that path is a regular, non-empty file. PDF files
// must also parse.
func (v *FileValidator) ValidateArtifact(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		v.logger.Error("Artifact does not exist",
			slog.String("artifact", path))
		return apperrors.ErrMissingArtifact.WithCause(err).WithContext("artifact", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat artifact",
			slog.String("artifact", path),
			slog.String("error", err.Error()))
		return apperrors.NewArtifactError(path, "cannot be read").WithCause(err).WithContext("artifact", path)
	}
	if info.IsDir() {
		return apperrors.NewArtifactError(path, "is a directory")
	}
	if info.Size() == 0 {
		v.logger.Error("Artifact is empty",
			slog.String("artifact", path))
		return apperrors.ErrEmptyArtifact.WithCause(fmt.Errorf("%s has 0 bytes", path)).WithContext("artifact", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := v.pdfPageCount(path)
		if err != nil {
			v.logger.Error("Artifact is not a readable PDF",
				slog.String("artifact", path),
				slog.String("error", err.Error()))
			return apperrors.ErrInvalidPDF.WithCause(err).WithContext("artifact", path)
		}
		v.logger.Debug("PDF artifact validated",
			slog.String("artifact", path),
			slog.Int("pages", pages))
	}

	v.logger.Debug("Artifact validated",
		slog.String("artifact", path),
		slog.Int64("size", info.Size()))
	return nil
}

func (v *FileValidator) pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.PageCount(f, conf)
	if err != nil {
		return 0, err
	}
	if pages == 0 {
		return 0, errors.New("document has no pages")
	}
	return pages, nil
}
