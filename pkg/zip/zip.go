package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
)

// File is one entry of a model bundle.
type File struct {
	Name string
	Data []byte
}

// Bundle packs the given files into a zip archive. Entries with empty names
// or no data are skipped; an archive with no entries is an error.
func Bundle(files []File) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	written := 0
	for _, f := range files {
		if f.Name == "" || len(f.Data) == 0 {
			continue
		}
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", f.Name, err)
		}
		written++
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if written == 0 {
		return nil, errors.New("zip: no files to bundle")
	}
	return buf.Bytes(), nil
}
