package kvstore

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileStore keeps one <key>.json file per key in a directory. Writes go
// through a temp file + rename so readers never observe a torn document.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Load(key string, dst interface{}) error {
	data, err := ioutil.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return errors.Wrap(err, "reading "+key)
	}
	return json.Unmarshal(data, dst)
}

func (s *FileStore) Save(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding "+key)
	}

	tmp, err := ioutil.TempFile(s.dir, key+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file for "+key)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing "+key)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file for "+key)
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path(key)), "replacing "+key)
}

func (s *FileStore) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing "+key)
	}
	return nil
}
