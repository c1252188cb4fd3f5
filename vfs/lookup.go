package vfs

import (
	"context"
	"strings"

	"github.com/enclavekernel/libos/errno"
)

// PathMax is the maximum path length lookupFollow accepts, matching
// POSIX's PATH_MAX.
const PathMax = 4096

// LookupConfig mirrors longpoll.ChannelConfig's validate-then-default
// shape: an optional struct of knobs, defaulted when zero.
type LookupConfig struct {
	// MaxFollows bounds symlink resolutions before returning ELOOP.
	// Defaults to 40 (Linux's MAXSYMLINKS).
	MaxFollows int
}

// LookupFollow walks path from start, resolving symlinks up to
// cfg.MaxFollows times, refusing paths longer than PathMax.
//
// Returns ENAMETOOLONG if path exceeds PathMax, ENOTDIR if a non-final
// component is not a directory, and ELOOP if symlink resolution exceeds
// the follow budget. cfg may be nil.
func LookupFollow(ctx context.Context, start Node, path string, cfg *LookupConfig) (Node, error) {
	if len(path) > PathMax {
		return Node{}, errno.ENAMETOOLONG
	}

	maxFollows := 40
	if cfg != nil && cfg.MaxFollows != 0 {
		maxFollows = cfg.MaxFollows
	}

	budget := maxFollows
	cur := start
	segments := splitSegments(path)

	for i := 0; i < len(segments); i++ {
		seg := segments[i]
		if seg == "" {
			continue
		}

		if i < len(segments)-1 {
			md, err := cur.Inode.Metadata(ctx)
			if err != nil {
				return Node{}, err
			}
			if !md.Mode.IsDir() {
				return Node{}, errno.ENOTDIR
			}
		}

		next, err := cur.Find(ctx, seg)
		if err != nil {
			return Node{}, err
		}

		md, err := next.Inode.Metadata(ctx)
		if err != nil {
			return Node{}, err
		}
		if md.Mode.IsSymlink() {
			if budget <= 0 {
				return Node{}, errno.ELOOP
			}
			budget--

			target, err := next.Inode.ReadLink(ctx)
			if err != nil {
				return Node{}, err
			}

			rest := segments[i+1:]
			var rebuilt string
			if strings.HasPrefix(target, "/") {
				rebuilt = target
				cur = start
			} else {
				rebuilt = target
			}
			segments = append(splitSegments(rebuilt), rest...)
			i = -1
			continue
		}

		cur = next
	}

	return cur, nil
}

func splitSegments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
