package vfs

import (
	"context"
	"sync"

	"github.com/enclavekernel/libos/errno"
)

// MountFS layers a mapping inode_id -> sub-filesystem over a wrapped
// filesystem's inode tree. One MountFS value exists per mounted
// filesystem instance; its mounts map keys are inode ids within its OWN
// root's tree, each pointing at the MountFS mounted there.
type MountFS struct {
	mu     sync.RWMutex
	root   AsyncInode
	mounts map[InodeID]*MountFS

	// mountParent, mountParentNode are set when this MountFS was mounted
	// into another MountFS's tree, for crossing the boundary on "..".
	mountParent     *MountFS
	mountParentNode Node
}

// NewMountFS wraps root as the top-level (unmounted) filesystem.
func NewMountFS(root AsyncInode) *MountFS {
	return &MountFS{root: root, mounts: make(map[InodeID]*MountFS)}
}

// Node identifies one inode within the MountFS tree it was reached
// through, which Find needs to resolve "." / ".." / mount-point crossing
// correctly relative to that specific fs instance.
type Node struct {
	fs    *MountFS
	Inode AsyncInode
}

// RootNode returns fs's own root as a Node.
func (fs *MountFS) RootNode() Node {
	return Node{fs: fs, Inode: fs.root}
}

// Find implements spec.md's find(name) contract: "." returns self; ".."
// crosses the mount boundary when self is the root of its own fs,
// otherwise resolves the normal parent; anything else traverses into the
// wrapped fs and, if the result is a mount point, returns the sub-fs's
// root instead.
func (n Node) Find(ctx context.Context, name string) (Node, error) {
	switch name {
	case ".":
		return n, nil

	case "..":
		if n.Inode.ID() == n.fs.root.ID() {
			n.fs.mu.RLock()
			parent := n.fs.mountParent
			parentNode := n.fs.mountParentNode
			n.fs.mu.RUnlock()
			if parent == nil {
				return n, nil // absolute root: ".." is self
			}
			return parentNode, nil
		}
		parent, err := n.Inode.Find(ctx, "..")
		if err != nil {
			return Node{}, err
		}
		return Node{fs: n.fs, Inode: parent}, nil

	default:
		child, err := n.Inode.Find(ctx, name)
		if err != nil {
			return Node{}, err
		}
		n.fs.mu.RLock()
		sub, isMount := n.fs.mounts[child.ID()]
		n.fs.mu.RUnlock()
		if isMount {
			return sub.RootNode(), nil
		}
		return Node{fs: n.fs, Inode: child}, nil
	}
}

// Mount grants sub exclusive mount access at n, requiring n be a
// directory and not already a mount point.
func (n Node) Mount(ctx context.Context, sub *MountFS) error {
	md, err := n.Inode.Metadata(ctx)
	if err != nil {
		return err
	}
	if !md.Mode.IsDir() {
		return errno.ENOTDIR
	}

	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if _, exists := n.fs.mounts[n.Inode.ID()]; exists {
		return errno.EBUSY
	}

	sub.mu.Lock()
	sub.mountParent = n.fs
	sub.mountParentNode = n
	sub.mu.Unlock()

	n.fs.mounts[n.Inode.ID()] = sub
	return nil
}

// Umount unmounts fs from wherever it is currently mounted. Refuses when
// fs is the absolute root (no parent to detach from) or when fs itself
// has active sub-mounts.
func (fs *MountFS) Umount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.mountParent == nil {
		return errno.EINVAL
	}
	if len(fs.mounts) > 0 {
		return errno.EBUSY
	}

	parent := fs.mountParent
	mountedAt := fs.mountParentNode.Inode.ID()

	parent.mu.Lock()
	delete(parent.mounts, mountedAt)
	parent.mu.Unlock()

	fs.mountParent = nil
	fs.mountParentNode = Node{}
	return nil
}
