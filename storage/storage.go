// Package storage keeps packaged models and diagnostic graphs under a media root so they
// can be downloaded after the job work directory is removed.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/pharmalnet/dti/pkg/errors"
)

// Kind is a media subdirectory.
type Kind string

const (
	// KindModel holds model archives.
	KindModel Kind = "pharmalnet_models"

	// KindGraph holds diagnostic images.
	KindGraph Kind = "pharmalnet_graphs"

	// IndexFile records every stored artifact, one CSV row each.
	IndexFile = "index.csv"
)

// Entry is one stored artifact.
type Entry struct {
	JobID     string    `csv:"job_id" json:"job_id"`
	Kind      Kind      `csv:"kind" json:"kind"`
	Name      string    `csv:"name" json:"name"`
	Size      int64     `csv:"size" json:"size"`
	CreatedAt time.Time `csv:"created_at" json:"created_at"`
}

// Storage is the interface used for durable artifacts.
type Storage interface {
	// SaveModel copies the archive at src into KindModel. The stored name is name with the
	// short job id inserted before its extension, so jobs sharing a model name never
	// overwrite each other.
	SaveModel(jobID, src, name string) (Entry, error)

	// SaveGraph copies the image at src into KindGraph under a job-unique name.
	SaveGraph(jobID, src, modelName string) (Entry, error)

	// Open opens a stored artifact for read.
	Open(kind Kind, name string) (io.ReadCloser, error)

	// Path returns the file path of a stored artifact.
	Path(kind Kind, name string) (string, error)

	// URL returns the download URL of a stored artifact.
	URL(kind Kind, name string) string

	// List returns the index entries of kind, oldest first.
	List(kind Kind) ([]Entry, error)

	// Delete removes a stored artifact.
	Delete(kind Kind, name string) error
}

type storage struct {
	root     string
	mediaURL string
	mu       sync.Mutex
}

// New returns a Storage rooted at mediaRoot. mediaURL prefixes download URLs.
func New(mediaRoot, mediaURL string) (Storage, error) {
	for _, k := range []Kind{KindModel, KindGraph} {
		if err := os.MkdirAll(filepath.Join(mediaRoot, string(k)), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", k)
		}
	}
	return &storage{root: mediaRoot, mediaURL: strings.TrimRight(mediaURL, "/")}, nil
}

// NewJobID returns a random job identifier.
func NewJobID() string {
	return uuid.NewString()
}

func (s *storage) SaveModel(jobID, src, name string) (Entry, error) {
	ext := filepath.Ext(name)
	return s.save(jobID, KindModel, src, strings.TrimSuffix(name, ext)+"_"+shortID(jobID)+ext)
}

func (s *storage) SaveGraph(jobID, src, modelName string) (Entry, error) {
	return s.save(jobID, KindGraph, src, modelName+"_graph_"+shortID(jobID)+filepath.Ext(src))
}

func shortID(jobID string) string {
	if len(jobID) > 8 {
		return jobID[:8]
	}
	return jobID
}

func (s *storage) save(jobID string, kind Kind, src, name string) (Entry, error) {
	dst, err := s.Path(kind, name)
	if err != nil {
		return Entry{}, err
	}
	size, err := copyAtomic(src, dst)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "store %s/%s", kind, name)
	}
	entry := Entry{JobID: jobID, Kind: kind, Name: name, Size: size, CreatedAt: time.Now().UTC()}
	if err := s.appendIndex(entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *storage) Open(kind Kind, name string) (io.ReadCloser, error) {
	p, err := s.Path(kind, name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Path rejects names that are not a single path element.
func (s *storage) Path(kind Kind, name string) (string, error) {
	if kind != KindModel && kind != KindGraph {
		return "", errors.NewValidationError("kind", "unknown media kind", kind)
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", errors.NewValidationError("name", "must be a plain file name", name)
	}
	return filepath.Join(s.root, string(kind), name), nil
}

func (s *storage) URL(kind Kind, name string) string {
	return s.mediaURL + "/" + string(kind) + "/" + name
}

func (s *storage) List(kind Kind) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	// 同名で上書きされたものは最新のみ残す
	latest := map[string]int{}
	var out []Entry
	for _, e := range entries {
		if e.Kind != kind {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, string(kind), e.Name)); err != nil {
			continue
		}
		if i, ok := latest[e.Name]; ok {
			out[i] = e
			continue
		}
		latest[e.Name] = len(out)
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *storage) Delete(kind Kind, name string) error {
	p, err := s.Path(kind, name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func (s *storage) indexPath() string {
	return filepath.Join(s.root, IndexFile)
}

func (s *storage) readIndex() ([]Entry, error) {
	file, err := os.Open(s.indexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	if err := gocsv.UnmarshalFile(file, &entries); err != nil {
		return nil, errors.Wrap(err, "read storage index")
	}
	return entries, nil
}

func (s *storage) appendIndex(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.indexPath())
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)
	file, err := os.OpenFile(s.indexPath(), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	rows := []Entry{e}
	if fresh {
		return gocsv.MarshalFile(&rows, file)
	}
	return gocsv.MarshalWithoutHeaders(&rows, file)
}

func copyAtomic(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
