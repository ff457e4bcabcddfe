package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// override path for "config.json5" is "config.local.json5"
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func readInto[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Load reads a json5 configuration file. A sibling `<base>.local.<ext>`
// file, when present, is merged on top of it, so checked-in defaults
// can be overridden without touching them. Returns os.ErrNotExist when
// neither file exists.
func Load[T any](path string) (T, error) {
	var out T

	found, err := readInto(path, &out)
	if err != nil {
		return out, err
	}

	var override T
	local := localPath(path)
	foundLocal, err := readInto(local, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", local)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// Locate walks from the working directory up toward the filesystem
// root and loads the first configuration file matching name. This
// serves environment-level files (telemetry.json5) that sit above the
// directory a run was started from.
func Locate[T any](name string) (T, error) {
	var out T

	dir, err := os.Getwd()
	if err != nil {
		return out, err
	}

	for {
		config, err := Load[T](filepath.Join(dir, name))
		if !os.IsNotExist(err) {
			return config, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return out, os.ErrNotExist
		}
		dir = parent
	}
}
