package config

import (
	"os"
	"path/filepath"
)

// Config file names, in lookup order.
var configFileNames = []string{"polyglot.yaml", "polyglot.yml"}

// Locate walks up from start to the first directory holding a config file
// and returns that directory and the file. Both are empty when no ancestor
// has one.
func Locate(start string) (root, file string) {
	dir := filepath.Clean(start)
	for {
		for _, name := range configFileNames {
			p := filepath.Join(dir, name)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return dir, p
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ""
		}
		dir = parent
	}
}
