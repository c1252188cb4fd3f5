package vfs_test

import (
	"context"
	"sync"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/vfs"
)

// memInode is a minimal in-memory AsyncInode for exercising vfs.Node /
// vfs.LookupFollow / vfs.MountFS without a real block device.
type memInode struct {
	vfs.BaseInode
	id       vfs.InodeID
	mode     vfs.Mode
	data     []byte
	target   string // symlink target
	mu       sync.Mutex
	children map[string]*memInode
	parent   *memInode
}

func newDir(id vfs.InodeID) *memInode {
	return &memInode{id: id, mode: vfs.ModeDir, children: make(map[string]*memInode)}
}

func newFile(id vfs.InodeID, data []byte) *memInode {
	return &memInode{id: id, mode: vfs.ModeRegular, data: data}
}

func newSymlink(id vfs.InodeID, target string) *memInode {
	return &memInode{id: id, mode: vfs.ModeSymlink, target: target}
}

func (m *memInode) ID() vfs.InodeID { return m.id }

func (m *memInode) Metadata(ctx context.Context) (vfs.Metadata, error) {
	return vfs.Metadata{ID: m.id, Mode: m.mode, Size: uint64(len(m.data))}, nil
}

func (m *memInode) Find(ctx context.Context, name string) (vfs.AsyncInode, error) {
	if !m.mode.IsDir() {
		return nil, errno.ENOTDIR
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == ".." {
		if m.parent == nil {
			return m, nil
		}
		return m.parent, nil
	}
	child, ok := m.children[name]
	if !ok {
		return nil, errno.ENOENT
	}
	return child, nil
}

func (m *memInode) link(name string, child *memInode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children[name] = child
	if child.mode.IsDir() {
		child.parent = m
	}
}

func (m *memInode) ReadLink(ctx context.Context) (string, error) {
	if !m.mode.IsSymlink() {
		return "", errno.EINVAL
	}
	return m.target, nil
}
