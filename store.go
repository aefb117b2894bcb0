package saltedbloom

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Store persists and restores filter snapshots.
type Store interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	// Load returns an error wrapping ErrSnapshotNotFound when nothing was saved yet.
	Load(ctx context.Context) (*Snapshot, error)
}

// Artifact locations relative to a FileStore root.
const (
	BitmapFile = "bitmap/bitmap.bin"
	InfoFile   = "bitmap/info.txt"
)

// FileStore keeps a snapshot as a bitmap file and an info file under Root.
//
// Both artifacts are staged to temporary files and renamed into place bitmap
// first, info last. The info file records the bitmap checksum, so a crash
// between the renames leaves a pair that Load rejects instead of a filter
// silently built from mismatched halves.
type FileStore struct {
	Root string
}

func NewFileStore(root string) *FileStore {
	if root == "" {
		root = "."
	}
	return &FileStore{Root: root}
}

func (fs *FileStore) BitmapPath() string {
	return filepath.Join(fs.Root, filepath.FromSlash(BitmapFile))
}

func (fs *FileStore) InfoPath() string {
	return filepath.Join(fs.Root, filepath.FromSlash(InfoFile))
}

func (fs *FileStore) Save(ctx context.Context, snapshot *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bitmap, info, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return writeStaged([]stagedFile{
		{target: fs.BitmapPath(), data: bitmap},
		{target: fs.InfoPath(), data: info},
	})
}

func (fs *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := readArtifact(fs.InfoPath())
	if err != nil {
		return nil, err
	}
	bitmap, err := readArtifact(fs.BitmapPath())
	if err != nil {
		return nil, err
	}
	snapshot, err := decodeSnapshot(bitmap, info)
	return snapshot, errors.Wrapf(err, "snapshot under %s", fs.Root)
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrSnapshotNotFound, "%s doesn't exist", path)
	}
	return data, errors.Wrapf(err, "%s read failed", path)
}

type stagedFile struct {
	target string
	data   []byte
	temp   string
}

// writeStaged writes every file to a temporary sibling, syncs it and only then
// renames the files into place in the given order.
func writeStaged(files []stagedFile) (err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, f := range files {
			if f.temp == "" {
				continue
			}
			if rmErr := os.Remove(f.temp); rmErr != nil && !os.IsNotExist(rmErr) {
				err = multierror.Append(err, errors.Wrapf(rmErr, "%s cleanup failed", f.temp))
			}
		}
	}()

	dirs := map[string]struct{}{}
	for idx := range files {
		f := &files[idx]
		dir := filepath.Dir(f.target)
		if mkdirErr := os.MkdirAll(dir, 0o755); mkdirErr != nil {
			return errors.Wrapf(mkdirErr, "%s creation failed", dir)
		}
		dirs[dir] = struct{}{}
		tmp, createErr := os.CreateTemp(dir, filepath.Base(f.target)+".tmp-*")
		if createErr != nil {
			return errors.Wrapf(createErr, "temp file for %s creation failed", f.target)
		}
		f.temp = tmp.Name()
		if writeErr := writeAndClose(tmp, f.data); writeErr != nil {
			return errors.Wrapf(writeErr, "%s staging failed", f.target)
		}
	}

	for idx := range files {
		f := &files[idx]
		if renameErr := os.Rename(f.temp, f.target); renameErr != nil {
			return errors.Wrapf(renameErr, "%s rename failed", f.target)
		}
		f.temp = ""
	}

	for dir := range dirs {
		// best-effort: make the renames durable
		if d, openErr := os.Open(dir); openErr == nil {
			_ = d.Sync()
			_ = d.Close()
		}
	}
	return nil
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
