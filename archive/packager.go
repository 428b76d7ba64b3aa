// Package archive writes trained models into portable zip archives and finds the model
// files inside archives, plain files and directories.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/metrics"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

const (
	// DefaultName is used when the requested model name is empty after sanitising.
	DefaultName = "pharmalnet_model"
	// ArchiveSuffix is appended to the model name to form the archive file name.
	ArchiveSuffix = "_trained_model.zip"
	// MetricsFile holds one "key: value" line per metric.
	MetricsFile = "metrics.txt"
	// GraphFile is the diagnostic image copied into the model directory.
	GraphFile = "graph.png"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeName restricts name to [A-Za-z0-9_.-] so it is safe as a file name.
func SanitizeName(name string) string {
	name = unsafeName.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, ".")
	if name == "" || strings.Trim(name, "_") == "" {
		return DefaultName
	}
	return name
}

// ArchiveName returns the archive file name for a model name.
func ArchiveName(name string) string {
	return SanitizeName(name) + ArchiveSuffix
}

// Evaluation is what the packager needs from an evaluation: the scores and the image.
type Evaluation interface {
	Scores() metrics.Report
	Graph() string
}

// ModelArchive describes a packaged model. WorkDir is job-scoped and removed by Cleanup.
type ModelArchive struct {
	ArchivePath string
	ModelDir    string
	WorkDir     string
	Files       []string // base names stored in the archive
}

// Cleanup removes the job work directory, archive included.
func (a *ModelArchive) Cleanup() error {
	if a == nil || a.WorkDir == "" {
		return nil
	}
	return os.RemoveAll(a.WorkDir)
}

// Packager builds model archives under WorkRoot (os.TempDir when empty).
type Packager struct {
	WorkRoot string
	Logger   log.Logger
}

// NewPackager returns a Packager rooted at workRoot.
func NewPackager(workRoot string) *Packager {
	return &Packager{WorkRoot: workRoot, Logger: log.GetLoggerWithName("packager")}
}

// Package saves m, the metrics and the graph into a fresh job directory and zips the
// directory's files into <name>_trained_model.zip. The archive is flat; *.zip files and
// empty files are left out.
func (p *Packager) Package(m dti.Model, ev Evaluation, name string) (_ *ModelArchive, err error) {
	name = SanitizeName(name)
	if p.WorkRoot != "" {
		if err := os.MkdirAll(p.WorkRoot, 0o755); err != nil {
			return nil, errors.NewModelError("Packager.Package", "create work root", err)
		}
	}
	workDir, err := os.MkdirTemp(p.WorkRoot, "pharmalnet_")
	if err != nil {
		return nil, errors.NewModelError("Packager.Package", "create work directory", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(workDir)
		}
	}()

	modelDir := filepath.Join(workDir, name)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, errors.NewModelError("Packager.Package", "create model directory", err)
	}
	if _, err := m.Save(modelDir); err != nil {
		return nil, err
	}
	if ev != nil {
		if err := writeMetrics(filepath.Join(modelDir, MetricsFile), ev.Scores()); err != nil {
			return nil, err
		}
		if src := ev.Graph(); src != "" {
			if err := copyFile(src, filepath.Join(modelDir, GraphFile)); err != nil {
				return nil, errors.NewModelError("Packager.Package", "copy graph", err)
			}
		}
	}

	archivePath := filepath.Join(workDir, name+ArchiveSuffix)
	files, err := zipFlat(modelDir, archivePath)
	if err != nil {
		return nil, err
	}

	p.logger().Info("Model packaged",
		log.OperationKey, log.OperationPackage,
		log.ArchiveKey, archivePath,
		"files", files,
	)
	return &ModelArchive{ArchivePath: archivePath, ModelDir: modelDir, WorkDir: workDir, Files: files}, nil
}

func (p *Packager) logger() log.Logger {
	if p.Logger == nil {
		return log.GetLoggerWithName("packager")
	}
	return p.Logger
}

func writeMetrics(path string, r metrics.Report) error {
	body := fmt.Sprintf("R2: %v\nMSE: %v\nCorr: %v\n", r.R2, r.MSE, r.Corr)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return errors.NewModelError("Packager.Package", "write metrics", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// zipFlat stores every regular file under dir by base name. The first file wins when two
// share a base name.
func zipFlat(dir, archivePath string) (files []string, err error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return nil, errors.NewModelError("Packager.Package", "create archive", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.NewModelError("Packager.Package", "close archive", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	seen := map[string]bool{}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		base := d.Name()
		if strings.EqualFold(filepath.Ext(base), ".zip") || seen[base] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return nil
		}
		seen[base] = true
		return addFile(zw, path, base, info)
	})
	if walkErr != nil {
		_ = zw.Close()
		return nil, errors.NewModelError("Packager.Package", "write archive", walkErr)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.NewModelError("Packager.Package", "finish archive", err)
	}
	for name := range seen {
		files = append(files, name)
	}
	slices.Sort(files)
	return files, nil
}

func addFile(zw *zip.Writer, path, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(w, src)
	return err
}
