package vfs

import (
	"context"

	"github.com/enclavekernel/libos/errno"
)

// InodeID is a filesystem-local, stable identifier for an inode.
type InodeID uint64

// Mode bits, the subset vfs itself inspects (a concrete filesystem may
// track finer-grained permission bits elsewhere).
type Mode uint32

const (
	ModeDir Mode = 1 << iota
	ModeSymlink
	ModeRegular
)

func (m Mode) IsDir() bool     { return m&ModeDir != 0 }
func (m Mode) IsSymlink() bool { return m&ModeSymlink != 0 }

// Metadata is the subset of stat(2) fields vfs and its callers need.
type Metadata struct {
	ID    InodeID
	Mode  Mode
	Size  uint64
	Links uint32
}

// DirEntry is one entry yielded by IterateEntries.
type DirEntry struct {
	Name  string
	Inode InodeID
}

// IoctlCmd is a tagged, downcastable ioctl request, per spec.md's
// downcastable-command design note: typed structs per concrete command,
// plus OtherIoctl as the catch-all fallback for filesystem-specific codes.
type IoctlCmd interface {
	ioctlCmd()
}

// OtherIoctl carries any command not modeled as its own type.
type OtherIoctl struct {
	Code uint32
	Arg  []byte
}

func (OtherIoctl) ioctlCmd() {}

// AsyncInode is the operation set every inode exposes. Concrete
// filesystems embed BaseInode and override only the methods that apply;
// BaseInode's defaults return the matching errno for "not supported on
// this inode type" the way spec.md requires.
type AsyncInode interface {
	ID() InodeID
	ReadAt(ctx context.Context, off int64, buf []byte) (int, error)
	WriteAt(ctx context.Context, off int64, buf []byte) (int, error)
	Metadata(ctx context.Context) (Metadata, error)
	SyncAll(ctx context.Context) error
	SyncData(ctx context.Context) error
	Resize(ctx context.Context, size uint64) error
	Fallocate(ctx context.Context, off, length int64) error
	Create(ctx context.Context, name string, mode Mode) (AsyncInode, error)
	Link(ctx context.Context, name string, target AsyncInode) error
	Unlink(ctx context.Context, name string) error
	Move(ctx context.Context, name string, newParent AsyncInode, newName string) error
	Find(ctx context.Context, name string) (AsyncInode, error)
	IterateEntries(ctx context.Context, fn func(DirEntry) bool) error
	Ioctl(ctx context.Context, cmd IoctlCmd) error
	ReadLink(ctx context.Context) (string, error)
	WriteLink(ctx context.Context, target string) error
}

// BaseInode implements AsyncInode with the spec's documented defaults, so
// a concrete inode type need only embed it and override applicable
// methods. ID is left unimplemented (embedders must define it) since it
// has no sensible default.
type BaseInode struct{}

func (BaseInode) ReadAt(context.Context, int64, []byte) (int, error)  { return 0, errno.ESPIPE }
func (BaseInode) WriteAt(context.Context, int64, []byte) (int, error) { return 0, errno.ESPIPE }
func (BaseInode) Metadata(context.Context) (Metadata, error)          { return Metadata{}, nil }
func (BaseInode) SyncAll(context.Context) error                      { return nil }
func (BaseInode) SyncData(context.Context) error                     { return nil }
func (BaseInode) Resize(context.Context, uint64) error                { return errno.EINVAL }
func (BaseInode) Fallocate(context.Context, int64, int64) error       { return errno.EINVAL }

func (BaseInode) Create(context.Context, string, Mode) (AsyncInode, error) {
	return nil, errno.ENOTDIR
}
func (BaseInode) Link(context.Context, string, AsyncInode) error { return errno.ENOTDIR }
func (BaseInode) Unlink(context.Context, string) error           { return errno.ENOTDIR }
func (BaseInode) Move(context.Context, string, AsyncInode, string) error {
	return errno.ENOTDIR
}
func (BaseInode) Find(context.Context, string) (AsyncInode, error) {
	return nil, errno.ENOTDIR
}
func (BaseInode) IterateEntries(context.Context, func(DirEntry) bool) error {
	return errno.ENOTDIR
}
func (BaseInode) Ioctl(context.Context, IoctlCmd) error           { return errno.EINVAL }
func (BaseInode) ReadLink(context.Context) (string, error)        { return "", errno.EINVAL }
func (BaseInode) WriteLink(context.Context, string) error         { return errno.EINVAL }
