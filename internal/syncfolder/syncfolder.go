// Package syncfolder reads the desktop sync client's folder descriptors and
// maps local paths onto cloud paths.
package syncfolder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	section         = "ownCloud"
	keyLocalPath    = "localPath"
	keyTargetPath   = "targetPath"
	foldersDir      = "folders"
	instantUploadTo = "InstantUpload"
)

// ErrNoInstantUpload is returned by Adopt when no sync folder maps the cloud root.
var ErrNoInstantUpload = errors.New("no sync folder is mapped to the cloud root")

// Descriptor is one configured sync folder.
type Descriptor struct {
	// Name is the descriptor file name.
	Name string
	// LocalPath is the local root, usually with a trailing separator.
	LocalPath string
	// TargetPath is the cloud folder the local root is synced to.
	TargetPath string
}

// DefaultConfigDir returns the desktop client's data directory for the current OS.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "ownCloud"), nil
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "ownCloud"), nil
		}
		return filepath.Join(home, "AppData", "Local", "ownCloud"), nil
	default:
		return filepath.Join(home, ".local", "share", "data", "ownCloud"), nil
	}
}

// Load reads every descriptor under <configDir>/folders in lexical file-name
// order. Files without a localPath are skipped.
func Load(configDir string) ([]Descriptor, error) {
	dir := filepath.Join(configDir, foldersDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sync folders: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []Descriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		cfg, err := ini.LoadSources(ini.LoadOptions{
			InsensitiveKeys:     true,
			IgnoreInlineComment: true,
		}, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("parse sync folder %s: %w", e.Name(), err)
		}
		sec, err := cfg.GetSection(section)
		if err != nil {
			continue
		}
		local := sec.Key(keyLocalPath).String()
		if local == "" {
			continue
		}
		out = append(out, Descriptor{
			Name:       e.Name(),
			LocalPath:  local,
			TargetPath: sec.Key(keyTargetPath).String(),
		})
	}
	return out, nil
}

// Resolve maps an absolute local path to its cloud path. The first folder
// whose LocalPath is a byte prefix of abs wins, even when a later folder is
// nested deeper; folders are tried in the order given.
func Resolve(abs string, folders []Descriptor) (string, bool) {
	for _, f := range folders {
		if f.LocalPath == "" || !strings.HasPrefix(abs, f.LocalPath) {
			continue
		}
		rest := strings.TrimLeft(abs[len(f.LocalPath):], "/")
		return "/" + rest, true
	}
	return "", false
}

// InstantUploadRoot returns the InstantUpload directory inside the folder
// synced to the cloud root.
func InstantUploadRoot(folders []Descriptor) (string, bool) {
	for _, f := range folders {
		if f.TargetPath == "/" {
			return filepath.Join(f.LocalPath, instantUploadTo), true
		}
	}
	return "", false
}

// Adopt moves path into the instant-upload directory when it is outside every
// sync folder and returns its new location. Paths already inside a sync
// folder are returned unchanged.
func Adopt(path string, folders []Descriptor) (string, error) {
	if _, ok := Resolve(path, folders); ok {
		return path, nil
	}
	root, ok := InstantUploadRoot(folders)
	if !ok {
		return "", ErrNoInstantUpload
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("adopt %s: %w", path, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", root, err)
	}

	dst := filepath.Join(root, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("adopt %s: %s already exists", path, dst)
	}
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("adopt %s: %w", path, err)
	}
	return dst, nil
}
