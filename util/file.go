package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJson writes a JSON object to a file creating parent directories if required.
// The write is atomic (temp file + rename) and the output JSON is pretty-formatted.
func WriteJson(file string, obj interface{}) error {
	fileDir := filepath.Dir(file)
	if err := os.MkdirAll(fileDir, 0750); err != nil {
		return fmt.Errorf("create dir %s: %w", fileDir, err)
	}

	bs, err := json.MarshalIndent(obj, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tempFile, err := os.CreateTemp(fileDir, ".*"+filepath.Base(file))
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tempFileName := tempFile.Name()

	if _, err = tempFile.Write(bs); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFileName)
		return fmt.Errorf("write temp: %w", err)
	}

	if err = tempFile.Close(); err != nil {
		_ = os.Remove(tempFileName)
		return fmt.Errorf("close temp: %w", err)
	}

	if err = os.Rename(tempFileName, file); err != nil {
		_ = os.Remove(tempFileName)
		return fmt.Errorf("rename temp: %w", err)
	}

	return nil
}

// ReadJson reads a JSON file into the given object
func ReadJson(file string, res interface{}) error {
	bs, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	if err = json.Unmarshal(bs, res); err != nil {
		return fmt.Errorf("unmarshal %s: %w", file, err)
	}

	return nil
}
