// Package vfs implements the async inode abstraction above a block device
// or in-memory backing store: AsyncInode's default-errno method set,
// MountFS's mount-point-crossing Find, and lookupFollow's
// budgeted path walk.
//
// lookupFollow is grounded on longpoll.Channel's "validate options, apply
// defaults, walk with an explicit budget" shape, here walking path
// segments against max_follows/PATH_MAX instead of receiving values
// against MinSize/MaxSize.
package vfs
