package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveSettings validates s and atomically replaces <dir>/settings.yml, keeping the
// previous file as settings.yml.bak.
func SaveSettings(dir string, s Settings) error {
	var res Validation
	validateSettings(&s, &res)
	if err := res.Err(); err != nil {
		return err
	}

	b, err := yaml.Marshal(&s)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, SettingsFile), b)
}

func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}
