package writer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/openpbo/pbo/pbo/format"
	"github.com/pkg/errors"
)

var (
	ErrEmptySource = errors.New("no files to pack under the source directory")
	ErrSizeChanged = errors.New("source file changed size during packing")
)

// ArchiveWriter emits the regions of a PBO in order: preamble, header table,
// payload, checksum trailer. Callers drive it in exactly that order.
type ArchiveWriter struct {
	fileio io.Writer
}

func NewWriter(file io.Writer) *ArchiveWriter {
	return &ArchiveWriter{
		fileio: file,
	}
}

func (archive *ArchiveWriter) WritePreamble() error {
	if _, err := archive.fileio.Write(format.PREAMBLE_BYTES); err != nil {
		return errors.Wrap(err, "failed to write preamble")
	}
	return nil
}

// WriteHeaders emits the full header table followed by its terminator.
func (archive *ArchiveWriter) WriteHeaders(entries []format.Entry) error {
	for i := range entries {
		if err := entries[i].WriteEntry(archive.fileio); err != nil {
			return err
		}
	}
	return format.WriteTerminator(archive.fileio)
}

// AppendPayload copies one file's bytes into the payload region. size is the
// byte count recorded in the entry header; a source that no longer matches it
// fails with ErrSizeChanged.
func (archive *ArchiveWriter) AppendPayload(r io.Reader, size uint32) error {
	n, err := io.Copy(archive.fileio, r)
	if err != nil {
		return errors.Wrap(err, "failed to write payload")
	}
	if n != int64(size) {
		return errors.Wrapf(ErrSizeChanged, "expected %d bytes, wrote %d", size, n)
	}
	return nil
}

// Close finishes the archive with the zero-filled checksum trailer. It does
// not close the underlying writer.
func (archive *ArchiveWriter) Close() error {
	if _, err := archive.fileio.Write(make([]byte, format.CHECKSUM_SIZE)); err != nil {
		return errors.Wrap(err, "failed to write checksum trailer")
	}
	return nil
}

type sourceFile struct {
	path    string // absolute host path
	name    string // stored name, backslash-separated
	size    uint32
	modTime uint32
}

// Create packs every regular file under sourceDir into a new PBO at outPath
// and returns the number of files packed. Files are enumerated in the lexical
// order of filepath.WalkDir, so the output is deterministic across runs and
// hosts. A directory with no regular files anywhere beneath it fails with
// ErrEmptySource.
//
// report, if non-nil, is called once per packed file. ctx is checked between
// files; cancellation abandons the operation.
//
// On failure the partially written archive is left on disk. Callers that need
// atomicity should write to a temporary path and rename it themselves.
func Create(ctx context.Context, sourceDir, outPath string, report format.Reporter) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	files, err := collect(sourceDir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, ErrEmptySource
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create archive file")
	}
	defer out.Close()

	archive := NewWriter(out)

	if err = archive.WritePreamble(); err != nil {
		return 0, err
	}

	entries := make([]format.Entry, len(files))
	for i, f := range files {
		entries[i] = format.Entry{
			Name:         f.name,
			Method:       format.PACKING_METHOD_STORED,
			OriginalSize: f.size,
			Timestamp:    f.modTime,
			DataSize:     f.size,
		}
	}
	if err = archive.WriteHeaders(entries); err != nil {
		return 0, err
	}

	for i, f := range files {
		if err = ctx.Err(); err != nil {
			return 0, err
		}
		if err = appendFile(archive, f); err != nil {
			return 0, err
		}
		if report != nil {
			report(fmt.Sprintf("Packing: %s (%d%%)", f.name, i*100/len(files)))
		}
	}

	if err = archive.Close(); err != nil {
		return 0, err
	}
	if err = out.Close(); err != nil {
		return 0, errors.Wrap(err, "failed to close archive file")
	}

	return len(files), nil
}

func appendFile(archive *ArchiveWriter, f sourceFile) error {
	fh, err := os.Open(f.path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", f.path)
	}
	defer fh.Close()

	if err = archive.AppendPayload(fh, f.size); err != nil {
		return errors.Wrapf(err, "failed to pack %s", f.name)
	}
	return nil
}

// collect walks sourceDir and records every regular file with its stored
// name, size, and whole-second modification time.
func collect(sourceDir string) ([]sourceFile, error) {
	root, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve source directory")
	}

	var files []sourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{
			path:    path,
			name:    format.ToArchivePath(rel),
			size:    uint32(info.Size()),
			modTime: clampTimestamp(info.ModTime()),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk source directory")
	}
	return files, nil
}

// clampTimestamp truncates to whole seconds and pins times outside the u32
// range to its bounds.
func clampTimestamp(t time.Time) uint32 {
	u := t.Unix()
	if u < 0 {
		return 0
	}
	if u > 0xffffffff {
		return 0xffffffff
	}
	return uint32(u)
}
