package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is the blob storage contract the upload and export flows
// depend on: create, delete and existence check by object name.
type ObjectStore interface {
	Create(objectName string, data []byte) error
	Open(objectName string) (io.ReadCloser, error)
	Delete(objectName string) error
	Exists(objectName string) (bool, error)
	PublicURL(objectName string) string
}

// LocalObjectStore keeps objects on disk under a per-bucket directory.
// Object names may contain slashes; they map to subdirectories.
type LocalObjectStore struct {
	bucket  string
	baseDir string
	baseURL string
}

// NewLocalObjectStore ensures the bucket directory exists and returns a handle.
func NewLocalObjectStore(bucket, baseDir, publicBaseURL string) (*LocalObjectStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	root := filepath.Join(baseDir, bucket)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket directory: %w", err)
	}
	return &LocalObjectStore{bucket: bucket, baseDir: root, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Create writes the object bytes, failing if the name escapes the bucket.
func (s *LocalObjectStore) Create(objectName string, data []byte) error {
	path, err := s.resolve(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object %s: %w", objectName, err)
	}
	return nil
}

// Open returns a read handle for the stored object.
func (s *LocalObjectStore) Open(objectName string) (io.ReadCloser, error) {
	path, err := s.resolve(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", objectName, err)
	}
	return file, nil
}

// Delete removes an object; deleting an absent object is not an error.
func (s *LocalObjectStore) Delete(objectName string) error {
	path, err := s.resolve(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", objectName, err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *LocalObjectStore) Exists(objectName string) (bool, error) {
	path, err := s.resolve(objectName)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", objectName, err)
	}
	return true, nil
}

// PublicURL returns the URL clients use to fetch the object.
func (s *LocalObjectStore) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, objectName)
}

func (s *LocalObjectStore) resolve(objectName string) (string, error) {
	cleaned := filepath.Clean("/" + objectName)
	if cleaned == "/" {
		return "", fmt.Errorf("empty object name")
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
