package pipeline

import "conceptforge/pkg/zip"

type modelFile struct {
	name string
	data []byte
}

func bundleFiles(files []modelFile) ([]byte, error) {
	entries := make([]zip.File, 0, len(files))
	for _, f := range files {
		entries = append(entries, zip.File{Name: f.name, Data: f.data})
	}
	return zip.Bundle(entries)
}
