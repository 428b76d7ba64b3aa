package archive

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

// Default extensions that identify a saved model directory.
const (
	DefaultWeightsExt = ".gob"
	DefaultConfigExt  = ".json"
)

// Located is a directory holding model files. ExtractDir is set when the input was an
// archive and is removed by Cleanup.
type Located struct {
	ModelDir   string
	ExtractDir string
}

// Cleanup removes the extraction directory, if any.
func (l *Located) Cleanup() error {
	if l == nil || l.ExtractDir == "" {
		return nil
	}
	return os.RemoveAll(l.ExtractDir)
}

// Inspector locates model directories.
type Inspector struct {
	WorkRoot   string
	WeightsExt string
	ConfigExt  string
	Logger     log.Logger
}

// NewInspector returns an Inspector with the default extensions.
func NewInspector(workRoot string) *Inspector {
	return &Inspector{
		WorkRoot:   workRoot,
		WeightsExt: DefaultWeightsExt,
		ConfigExt:  DefaultConfigExt,
		Logger:     log.GetLoggerWithName("inspector"),
	}
}

// LocateModel finds the directory holding the model files for path.
//
// A .zip file is extracted into a fresh directory first and a directory is searched as
// is; directories are visited in lexical order and the first one holding at least one
// weights file and one config file is returned. Any other file resolves to its containing
// directory without a search.
func (i *Inspector) LocateModel(path string) (_ *Located, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewModelError("Inspector.LocateModel", "stat input", err)
	}

	loc := &Located{}
	root := path
	switch {
	case info.IsDir():
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		if i.WorkRoot != "" {
			if err := os.MkdirAll(i.WorkRoot, 0o755); err != nil {
				return nil, errors.NewModelError("Inspector.LocateModel", "create work root", err)
			}
		}
		dir, err := os.MkdirTemp(i.WorkRoot, "pharmalnet_model_")
		if err != nil {
			return nil, errors.NewModelError("Inspector.LocateModel", "create extraction directory", err)
		}
		loc.ExtractDir = dir
		defer func() {
			if err != nil {
				_ = loc.Cleanup()
			}
		}()
		if err := extract(path, dir); err != nil {
			return nil, err
		}
		root = dir
	default:
		loc.ModelDir = filepath.Dir(path)
		return loc, nil
	}

	weightsExt, configExt := i.Extensions()
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		ok, err := holdsModel(p, weightsExt, configExt)
		if err != nil {
			return err
		}
		if ok {
			loc.ModelDir = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewModelError("Inspector.LocateModel", "walk", err)
	}
	if loc.ModelDir == "" {
		return nil, errors.NewModelFilesNotFoundError(path, weightsExt, configExt)
	}

	i.logger().Debug("Model files located",
		log.OperationKey, log.OperationLocate,
		log.PathKey, loc.ModelDir,
	)
	return loc, nil
}

// Extensions returns the weights and config extensions searched for.
func (i *Inspector) Extensions() (weightsExt, configExt string) {
	w, c := i.WeightsExt, i.ConfigExt
	if w == "" {
		w = DefaultWeightsExt
	}
	if c == "" {
		c = DefaultConfigExt
	}
	return w, c
}

func (i *Inspector) logger() log.Logger {
	if i.Logger == nil {
		return log.GetLoggerWithName("inspector")
	}
	return i.Logger
}

func holdsModel(dir, weightsExt, configExt string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	var weights, config bool
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case strings.ToLower(weightsExt):
			weights = true
		case strings.ToLower(configExt):
			config = true
		}
	}
	return weights && config, nil
}

// extract unpacks the archive at src into dest. Entries resolving outside dest are rejected.
func extract(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return errors.NewModelError("Inspector.LocateModel", "open archive", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.NewModelError("Inspector.LocateModel", "create directory", err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return errors.NewModelError("Inspector.LocateModel", "extract "+f.Name, err)
		}
	}
	return nil
}

func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", errors.NewValueError("Inspector.LocateModel", "archive entry escapes extraction directory: "+name)
	}
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewValueError("Inspector.LocateModel", "archive entry escapes extraction directory: "+name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
