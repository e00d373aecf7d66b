// Package volume is the shared-filesystem client the rest of the repository
// talks to: open/read/write/append/readdir/unlink/close plus an advisory
// whole-file lock, nothing more.
//
// Handle is backed by a plain local directory tree here. A real deployment
// would mount the distributed filesystem at --volumes-root (e.g. via a
// FUSE/libgfapi mount) and nothing above this package would need to change.
package volume

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const (
	// MetaDir is the per-volume directory holding one log file per block
	// plus the lock file.
	MetaDir = "block-meta"
	// StoreDir is the per-volume directory holding backing files, named by
	// gbid.
	StoreDir = "block-store"
	// LockFile is the advisory-lock target for a volume.
	LockFile = "meta.lock"
)

// Handle is an authenticated handle to one shared volume. Callers obtain one
// via Open and must Close it when done.
type Handle struct {
	root string // root/MetaDir and root/StoreDir must exist
	name string
}

// Unlocker releases a lock acquired by Handle.Lock.
type Unlocker interface {
	Unlock() error
}

// Open returns a Handle for volume, rooted under volumesRoot, creating the
// block-meta and block-store directories if they don't already exist. The
// volfileserver argument is accepted (and recorded for callers that embed it
// in RPC args) but unused by this local adapter; a libgfapi-backed Handle
// would dial it to mount the volume.
func Open(volumesRoot, name, volfileserver string) (*Handle, error) {
	root := filepath.Join(volumesRoot, name)
	for _, d := range []string{MetaDir, StoreDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("volume %s: %w", name, err)
		}
	}
	return &Handle{root: root, name: name}, nil
}

// Name returns the volume name this Handle was opened for.
func (h *Handle) Name() string { return h.name }

// Close releases any resources held by the handle. For the local adapter
// this is a no-op; it exists so that a real libgfapi Handle can call
// glfs_fini without changing callers.
func (h *Handle) Close() error { return nil }

func (h *Handle) metaPath(blockName string) string {
	return filepath.Join(h.root, MetaDir, blockName)
}

func (h *Handle) storePath(gbid string) string {
	return filepath.Join(h.root, StoreDir, gbid)
}

func (h *Handle) lockPath() string {
	return filepath.Join(h.root, MetaDir, LockFile)
}

// MetaExists reports whether a metadata log exists for blockName.
func (h *Handle) MetaExists(blockName string) (bool, error) {
	return exists(h.metaPath(blockName))
}

// StoreExists reports whether the backing file for gbid exists.
func (h *Handle) StoreExists(gbid string) (bool, error) {
	return exists(h.storePath(gbid))
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ReadMeta reads the full contents of a block's metadata log. Returns
// fs.ErrNotExist (wrapped) if the log doesn't exist.
func (h *Handle) ReadMeta(blockName string) ([]byte, error) {
	return os.ReadFile(h.metaPath(blockName))
}

// AppendMeta appends a single newline-terminated line to a block's metadata
// log, creating the file if needed. Lines are small enough that one write(2)
// normally suffices, but partial writes are retried until the whole line is
// emitted.
func (h *Handle) AppendMeta(blockName, line string) error {
	f, err := os.OpenFile(h.metaPath(blockName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data := []byte(line)
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	for len(data) > 0 {
		n, err := f.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// UnlinkMeta removes a block's metadata log.
func (h *Handle) UnlinkMeta(blockName string) error {
	return os.Remove(h.metaPath(blockName))
}

// ListBlocks enumerates block names under block-meta, skipping ".", "..",
// and the lock file.
func (h *Handle) ListBlocks() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(h.root, MetaDir))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." || e.Name() == LockFile {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// CreateStore creates the backing file for gbid with exact length size.
func (h *Handle) CreateStore(gbid string, size uint64) error {
	f, err := os.OpenFile(h.storePath(gbid), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(int64(size))
}

// UnlinkStore removes the backing file for gbid.
func (h *Handle) UnlinkStore(gbid string) error {
	err := os.Remove(h.storePath(gbid))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// metaLock is the file descriptor backing an acquired advisory lock. Flock
// locks are associated with the open file description, so they are released
// automatically if the process exits without calling Unlock; a coordinator
// crash never deadlocks the volume.
type metaLock struct {
	f *os.File
}

func (l *metaLock) Unlock() error {
	defer l.f.Close()
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

// Lock acquires the whole-volume advisory lock on block-meta/meta.lock,
// blocking until it is available. Only the lock holder may append to any
// block's log on this volume.
func (h *Handle) Lock() (Unlocker, error) {
	f, err := os.OpenFile(h.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening meta lock for volume %s: %w", h.name, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking meta lock for volume %s: %w", h.name, err)
	}
	return &metaLock{f: f}, nil
}
