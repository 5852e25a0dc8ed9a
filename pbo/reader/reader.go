package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openpbo/pbo/pbo/format"
	"github.com/pkg/errors"
)

var (
	ErrNoEntries        = errors.New("archive contains no file entries")
	ErrTruncatedArchive = errors.New("archive payload is truncated")
	ErrUnsafeEntryName  = errors.New("entry name escapes the destination directory")
)

// Archive is a fully parsed PBO held in memory. The whole byte buffer stays
// resident until the Archive is dropped; very large archives cost
// proportional memory.
type Archive struct {
	entries []format.Entry
	data    []byte
	payload int // offset of the first payload byte
}

// Load reads and parses the archive at path.
func Load(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read archive")
	}
	return Parse(data)
}

// Parse decodes the preamble and header table of a PBO byte stream. An
// archive with zero entries fails with ErrNoEntries.
func Parse(data []byte) (*Archive, error) {
	cursor := 0

	// The product string before the signature is arbitrary and usually empty.
	for cursor < len(data) && data[cursor] != 0 {
		cursor++
	}
	cursor++

	if cursor+len(format.SIGNATURE_STRING) <= len(data) &&
		string(data[cursor:cursor+len(format.SIGNATURE_STRING)]) == format.SIGNATURE_STRING {
		cursor += len(format.SIGNATURE_STRING) + 1 + format.RESERVED_SIZE
	}

	var entries []format.Entry
	for cursor < len(data) {
		entry, next, ok := format.DecodeEntry(data, cursor)
		cursor = next
		if !ok || entry.IsTerminator() {
			break
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	return &Archive{
		entries: entries,
		data:    data,
		payload: cursor,
	}, nil
}

// Entries returns the header table in archive order.
func (archive *Archive) Entries() []format.Entry {
	return archive.entries
}

// Extract writes every entry beneath destDir, creating it and any parent
// directories as needed, and returns the number of files written. Existing
// files are overwritten. Each file's modification time is restored from its
// header on a best-effort basis; restore failures are swallowed.
//
// An entry whose declared size overruns the remaining payload fails with
// ErrTruncatedArchive before its destination file is created; files written
// for earlier entries are left in place.
func (archive *Archive) Extract(ctx context.Context, destDir string, report format.Reporter) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, errors.Wrap(err, "failed to create destination directory")
	}

	cursor := archive.payload
	for i := range archive.entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		entry := &archive.entries[i]

		size := int(entry.DataSize)
		if size > len(archive.data)-cursor {
			return 0, errors.Wrapf(ErrTruncatedArchive,
				"entry %s declares %d bytes, %d remain", entry.Name, entry.DataSize, len(archive.data)-cursor)
		}

		name := format.ToHostPath(entry.Name)
		if !filepath.IsLocal(name) {
			return 0, errors.Wrapf(ErrUnsafeEntryName, "%q", entry.Name)
		}

		target := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, errors.Wrapf(err, "failed to create directory for %s", name)
		}
		if err := os.WriteFile(target, archive.data[cursor:cursor+size], 0o644); err != nil {
			return 0, errors.Wrapf(err, "failed to write %s", name)
		}
		cursor += size

		// Best effort; extraction carries on without the original time.
		mtime := time.Unix(int64(entry.Timestamp), 0)
		_ = os.Chtimes(target, mtime, mtime)

		if report != nil {
			report(fmt.Sprintf("Extracting: %s (%d%%)", entry.Name, i*100/len(archive.entries)))
		}
	}

	return len(archive.entries), nil
}

// Extract unpacks the archive at archivePath beneath destDir.
func Extract(ctx context.Context, archivePath, destDir string, report format.Reporter) (int, error) {
	archive, err := Load(archivePath)
	if err != nil {
		return 0, err
	}
	return archive.Extract(ctx, destDir, report)
}
