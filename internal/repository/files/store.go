// Package files persists extracted JSON documents on a mounted disk.
// Layout mirrors the data path the read endpoints serve:
// <root>/<customer_folder>/<data_type>_data.json
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/contasync/contasync/internal/apperrors"
)

type Store struct {
	root string
}

type DocumentInfo struct {
	Name     string
	Size     int64
	Modified time.Time
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("can't prepare data root: %w", err)
	}

	return &Store{root: root}, nil
}

// Save writes the document atomically: temp file in the target
// directory, then rename. Readers never observe a partial write.
func (s *Store) Save(folder string, name string, data []byte) (string, error) {
	dir, err := s.folderPath(folder)
	if err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("can't prepare customer folder: %w", err)
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("can't create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("can't write document: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("can't replace document: %w", err)
	}

	return path, nil
}

func (s *Store) Read(folder string, name string) ([]byte, error) {
	dir, err := s.folderPath(folder)
	if err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("store error: %w", apperrors.ErrDocumentNotFound)
	default:
		return nil, fmt.Errorf("can't read document: %w", err)
	}
}

// List returns the customer's JSON documents. A customer without a
// folder yet simply has no documents.
func (s *Store) List(folder string) ([]DocumentInfo, error) {
	dir, err := s.folderPath(folder)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return []DocumentInfo{}, nil
	default:
		return nil, fmt.Errorf("can't list documents: %w", err)
	}

	docs := make([]DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("can't stat document: %w", err)
		}

		docs = append(docs, DocumentInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	return docs, nil
}

// folderPath confines the customer folder to a single path element
// under the store root
func (s *Store) folderPath(folder string) (string, error) {
	if folder == "" || folder != filepath.Base(filepath.Clean(folder)) || strings.HasPrefix(folder, ".") {
		return "", fmt.Errorf("store error: %w", apperrors.ErrFolderInvalid)
	}

	return filepath.Join(s.root, folder), nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(filepath.Clean(name)) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("store error: %w", apperrors.ErrDocumentNotFound)
	}
	return nil
}
