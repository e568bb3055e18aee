// Package catalog lists the GeoJSON files the dashboard can load.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// File is a data file under the web root.
type File struct {
	Path     string `json:"path" doc:"Path as requested by the dashboard" example:"./data/areas/para.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	Bytes    int64  `json:"bytes" doc:"File size in bytes"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// Supported data file extensions and their types
var extToType = map[string]string{
	".geojson": "GeoJSON",
	".json":    "GeoJSON",
}

// Catalog scans the data directory of a web root.
type Catalog struct {
	root string
}

// New creates a catalog for webDir. Files are expected under webDir/data.
func New(webDir string) *Catalog {
	return &Catalog{root: webDir}
}

// DataDir returns the directory that is scanned.
func (c *Catalog) DataDir() string {
	return filepath.Join(c.root, "data")
}

// List returns every data file, sorted by path.
func (c *Catalog) List() ([]File, error) {
	files := []File{}
	err := filepath.WalkDir(c.DataDir(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		fileType, ok := extToType[strings.ToLower(filepath.Ext(p))]
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return nil
		}
		files = append(files, File{
			Path:     "./" + filepath.ToSlash(rel),
			Size:     formatSize(info.Size()),
			Bytes:    info.Size(),
			FileType: fileType,
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: walk data dir")
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Missing returns the paths from want that have no file under the root.
func (c *Catalog) Missing(want []string) []string {
	var missing []string
	for _, p := range want {
		clean := path.Clean("/" + strings.TrimPrefix(p, "./"))
		if _, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(clean))); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
