package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned for keys that resolve outside the base directory
var ErrPathTraversal = errors.New("invalid key: path traversal detected")

// FilesystemStorage serves source images from a local directory and stores
// derived records next to them under <key>.derived/<variant>/<file_name>
type FilesystemStorage struct {
	baseDir string
}

// NewFilesystemStorage creates a new filesystem storage
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FilesystemStorage{
		baseDir: abs,
	}, nil
}

// resolve maps key to a path inside baseDir
func (fs *FilesystemStorage) resolve(key string) (string, error) {
	path := filepath.Join(fs.baseDir, key)
	rel, err := filepath.Rel(fs.baseDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return path, nil
}

// GetReader returns a reader for the file at the given key
func (fs *FilesystemStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// GetReaderByContentID treats the content ID as a key relative to baseDir
func (fs *FilesystemStorage) GetReaderByContentID(ctx context.Context, contentID string) (io.ReadCloser, error) {
	return fs.GetReader(ctx, contentID)
}

// Exists checks if a file exists at the given key
func (fs *FilesystemStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}

	return !info.IsDir(), nil
}

// GetMetadata returns size and sniffed content type of the file at key
func (fs *FilesystemStorage) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	return &Metadata{
		Size:        info.Size(),
		ContentType: http.DetectContentType(head[:n]),
	}, nil
}

func (fs *FilesystemStorage) derivedDir(contentID, derivedType string, derivedVersion int) (string, error) {
	return fs.resolve(filepath.Join(contentID+".derived", VariantName(derivedType, derivedVersion)))
}

// HasDerived reports whether a record for the type and version was written
func (fs *FilesystemStorage) HasDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int) (bool, error) {
	dir, err := fs.derivedDir(contentID, derivedType, derivedVersion)
	if err != nil {
		return false, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to list derived content: %w", err)
	}

	return len(entries) > 0, nil
}

// PutDerived writes r under the variant directory and returns its key
func (fs *FilesystemStorage) PutDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int, r io.Reader, meta map[string]string) (string, error) {
	dir, err := fs.derivedDir(contentID, derivedType, derivedVersion)
	if err != nil {
		return "", err
	}
	fileName := filepath.Base(derivedFileName(derivedType, meta))

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create derived directory: %w", err)
	}

	// write then rename so readers never see a partial record
	path := filepath.Join(dir, fileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write derived content: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to commit derived content: %w", err)
	}

	rel, err := filepath.Rel(fs.baseDir, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// ReadDerived returns the bytes of a previously written derived file
func (fs *FilesystemStorage) ReadDerived(ctx context.Context, key string) ([]byte, error) {
	rc, err := fs.GetReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("failed to read derived content: %w", err)
	}
	return buf.Bytes(), nil
}
