package storage

import (
	"os"
	"path/filepath"
)

// StoreUsage breaks down on-disk footprint by store. Database covers the
// SQLite file, Lexical the bleve index directory, Vector the index snapshot.
type StoreUsage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	LexicalBytes  int64 `json:"lexical_bytes"`
	VectorBytes   int64 `json:"vector_bytes"`
	TotalBytes    int64 `json:"total_bytes"`
}

// MeasureUsage sizes the three store paths. Paths that are empty or do not
// exist yet contribute zero; any other filesystem error is returned.
func MeasureUsage(databasePath, lexicalPath, vectorPath string) (*StoreUsage, error) {
	usage := &StoreUsage{}
	for _, store := range []struct {
		path string
		dest *int64
	}{
		{databasePath, &usage.DatabaseBytes},
		{lexicalPath, &usage.LexicalBytes},
		{vectorPath, &usage.VectorBytes},
	} {
		n, err := pathSize(store.path)
		if err != nil {
			return nil, err
		}
		*store.dest = n
		usage.TotalBytes += n
	}
	return usage, nil
}

func pathSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.Walk(path, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi != nil && !fi.IsDir() {
			total += fi.Size()
		}
		return nil
	})
	return total, err
}
