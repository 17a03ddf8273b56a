package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager enforces the filesystem allow-list for spreadsheets read by path
// and for reports written to disk. Roots are stored as canonical absolute
// paths; candidate paths must resolve inside one of them.
type Manager struct {
	allowedDirs []string
	allowedExts map[string]struct{}
	outputExts  map[string]struct{}
}

// ErrNotAllowed indicates the requested path is outside the allow-list roots.
var ErrNotAllowed = errors.New("security: path not allowed")

// ErrUnsupportedExtension indicates the requested file extension is not supported.
var ErrUnsupportedExtension = errors.New("security: unsupported file extension")

// ErrNotFound indicates the requested file does not exist or is not accessible.
var ErrNotFound = errors.New("security: file not found")

// DefaultInputExtensions lists the spreadsheet formats the loader decodes.
var DefaultInputExtensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm", ".xls", ".csv"}

// DefaultOutputExtensions lists the report and export formats that may be written.
var DefaultOutputExtensions = []string{".html", ".pdf", ".csv", ".xlsx"}

// NewManager constructs a security manager given an allow-list of directories
// and a list of allowed input extensions (case-insensitive, with leading dot).
// Directories are canonicalized (absolute + EvalSymlinks) and validated.
func NewManager(allowDirs []string, allowedExtensions []string) (*Manager, error) {
	if len(allowedExtensions) == 0 {
		allowedExtensions = DefaultInputExtensions
	}
	exts, err := extensionSet(allowedExtensions)
	if err != nil {
		return nil, err
	}
	outExts, err := extensionSet(DefaultOutputExtensions)
	if err != nil {
		return nil, err
	}

	canonical := make([]string, 0, len(allowDirs))
	for _, d := range allowDirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("security: resolve abs for %q: %w", d, err)
		}
		// EvalSymlinks so that symlinked roots cannot be used to escape later.
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("security: eval symlinks for %q: %w", abs, err)
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, fmt.Errorf("security: stat %q: %w", real, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("security: allow-list entry is not a directory: %q", real)
		}
		canonical = append(canonical, filepath.Clean(real))
	}

	return &Manager{allowedDirs: canonical, allowedExts: exts, outputExts: outExts}, nil
}

// NewManagerFromList splits an os.PathListSeparator-separated directory list,
// as found in PARKSTATS_ALLOWED_DIRS. An empty list denies every path.
func NewManagerFromList(list string) (*Manager, error) {
	var dirs []string
	if list != "" {
		dirs = filepath.SplitList(list)
	}
	return NewManager(dirs, nil)
}

func extensionSet(list []string) (map[string]struct{}, error) {
	exts := make(map[string]struct{}, len(list))
	for _, e := range list {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.HasPrefix(e, ".") {
			return nil, fmt.Errorf("security: invalid extension: %q", e)
		}
		exts[e] = struct{}{}
	}
	return exts, nil
}

// AllowedDirectories returns the canonical allow-list roots.
func (m *Manager) AllowedDirectories() []string {
	out := make([]string, len(m.allowedDirs))
	copy(out, m.allowedDirs)
	return out
}

// ValidateConfig returns an error when no allow-list entries are configured.
// Path-based tools stay unusable until an operator provides directories.
func (m *Manager) ValidateConfig() error {
	if len(m.allowedDirs) == 0 {
		return errors.New("security: no allowed directories configured")
	}
	return nil
}

// ValidateOpenPath ensures the input path refers to an existing file with an
// allowed extension inside one of the configured allow-list directories.
// It returns the canonical absolute path suitable for opening.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if input == "" {
		return "", ErrNotAllowed
	}
	ext := strings.ToLower(filepath.Ext(input))
	if _, ok := m.allowedExts[ext]; !ok {
		return "", ErrUnsupportedExtension
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: eval symlinks: %w", err)
	}

	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: stat: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotAllowed
	}
	if m.contained(real) {
		return real, nil
	}
	return "", ErrNotAllowed
}

// ValidateOutputPath ensures a report destination has an output extension and
// its parent directory resolves inside an allow-list root. The file itself
// may not exist yet. It returns the canonical absolute destination.
func (m *Manager) ValidateOutputPath(output string) (string, error) {
	if strings.TrimSpace(output) == "" {
		return "", ErrNotAllowed
	}
	ext := strings.ToLower(filepath.Ext(output))
	if _, ok := m.outputExts[ext]; !ok {
		return "", ErrUnsupportedExtension
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: eval symlinks: %w", err)
	}
	target := filepath.Join(dir, filepath.Base(abs))
	if info, err := os.Lstat(target); err == nil && (info.IsDir() || info.Mode()&os.ModeSymlink != 0) {
		return "", ErrNotAllowed
	}
	if m.contained(target) {
		return target, nil
	}
	return "", ErrNotAllowed
}

// contained reports whether a canonical path lies strictly below an allow-list root.
func (m *Manager) contained(real string) bool {
	for _, root := range m.allowedDirs {
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == "." || rel == "" {
			continue
		}
		if !strings.HasPrefix(rel, "..") && !strings.HasPrefix(filepath.Clean(rel), "..") {
			return true
		}
	}
	return false
}
