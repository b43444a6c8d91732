package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveJSON encodes the given object as JSON and writes it to filePath.
// The write goes to a temporary file in the same directory which is fsynced
// and renamed over the target, so a crash mid-write leaves the previous
// snapshot intact.
func SaveJSON(filePath string, object interface{}) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	encoder := json.NewEncoder(tmp)
	if err := encoder.Encode(object); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to json encode to file %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, filePath, err)
	}
	return nil
}

// LoadJSON decodes a JSON file from filePath into the provided pointer.
// If the file does not exist, it returns os.ErrNotExist, allowing callers to
// handle fresh starts gracefully.
func LoadJSON(filePath string, objectPointer interface{}) error {
	file, err := os.Open(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filePath, closeErr)
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(objectPointer); err != nil {
		return fmt.Errorf("failed to json decode from file %s: %w", filePath, err)
	}
	return nil
}
