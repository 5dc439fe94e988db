// Package archive reads image sets out of ZIP files and packs results back
// into them.
package archive

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/logomaster/go-logomark/imageio"
)

// ErrArchive is returned for corrupt or unreadable ZIP files.
var ErrArchive = errors.New("archive read failed")

// ExtractImages extracts every supported image entry from the ZIP at
// archivePath into destDir and returns their paths in archive order.
// Entries with other extensions, directories and entries escaping destDir
// are skipped.
//
// Arguments:
//   - archivePath: The ZIP file to read.
//   - destDir: Extraction target; created if missing.
//
// Returns:
//   - []string: Paths of the extracted image files.
//   - error: ErrArchive when the ZIP cannot be opened or an entry fails.
func ExtractImages(archivePath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Wrapf(ErrArchive, "%s: %v", archivePath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errors.Wrapf(ErrArchive, "dest %s: %v", destDir, err)
	}

	var extracted []string
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() || !imageio.SupportedInput(entry.Name) {
			continue
		}

		dest := filepath.Join(destDir, filepath.Base(entry.Name))
		if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
			slog.Warn("skipping unsafe archive entry", "entry", entry.Name)
			continue
		}

		if err := extractEntry(entry, dest); err != nil {
			return extracted, errors.Wrapf(ErrArchive, "%s: entry %s: %v", archivePath, entry.Name, err)
		}
		extracted = append(extracted, dest)
	}

	slog.Info("extracted archive", "archive", archivePath, "images", len(extracted))
	return extracted, nil
}

func extractEntry(entry *zip.File, dest string) error {
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// WriteImages packs the given files into a new ZIP at zipPath, storing each
// under its base name. Files are written in sorted order so output is
// deterministic. A file that cannot be read fails the whole write; the
// partial archive is removed.
func WriteImages(zipPath string, files []string) error {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return errors.Wrapf(ErrArchive, "dir for %s: %v", zipPath, err)
	}
	f, err := os.Create(zipPath)
	if err != nil {
		return errors.Wrapf(ErrArchive, "create %s: %v", zipPath, err)
	}
	w := zip.NewWriter(f)

	for _, file := range sorted {
		if err := addEntry(w, file); err != nil {
			w.Close()
			f.Close()
			os.Remove(zipPath)
			return errors.Wrapf(ErrArchive, "%s: add %s: %v", zipPath, file, err)
		}
	}

	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(zipPath)
		return errors.Wrapf(ErrArchive, "%s: %v", zipPath, err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(ErrArchive, "%s: %v", zipPath, err)
	}

	slog.Info("wrote archive", "archive", zipPath, "images", len(sorted))
	return nil
}

func addEntry(w *zip.Writer, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()

	entry, err := w.Create(filepath.Base(file))
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, in)
	return err
}
