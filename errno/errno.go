// Package errno provides the POSIX errno taxonomy used at the syscall
// boundary (spec §7), as a typed error rather than raw integers, so callers
// can use errors.Is/errors.As the way the rest of the module reports
// failures.
package errno

import "fmt"

// Errno is a POSIX error number, wrapped so it satisfies the error
// interface and composes with errors.Is/errors.As.
type Errno int32

// The errno taxonomy named in spec §7. Values are illustrative (they match
// Linux x86_64 where it matters for wire compatibility with a guest) but
// callers should compare by identity (errors.Is), never by integer value.
const (
	EAGAIN          Errno = 11
	EBADF           Errno = 9
	EINVAL          Errno = 22
	ENOMEM          Errno = 12
	ENOENT          Errno = 2
	EPIPE           Errno = 32
	ESPIPE          Errno = 29
	ENOTDIR         Errno = 20
	ENOTCONN        Errno = 107
	EISCONN         Errno = 106
	EALREADY        Errno = 114
	EINTR           Errno = 4
	ETIMEDOUT       Errno = 110
	ECANCELED       Errno = 125
	EACCES          Errno = 13
	ELOOP           Errno = 40
	ENAMETOOLONG    Errno = 36
	EXDEV           Errno = 18
	EBUSY           Errno = 16
	EEXIST          Errno = 17
	EADDRINUSE      Errno = 98
	EDESTADDRREQ    Errno = 89
	ENXIO           Errno = 6
	EPROTONOSUPPORT Errno = 93
	ESOCKTNOSUPPORT Errno = 94
	EOPNOTSUPP      Errno = 95
)

var names = map[Errno]string{
	EAGAIN:          "EAGAIN",
	EBADF:           "EBADF",
	EINVAL:          "EINVAL",
	ENOMEM:          "ENOMEM",
	ENOENT:          "ENOENT",
	EPIPE:           "EPIPE",
	ESPIPE:          "ESPIPE",
	ENOTDIR:         "ENOTDIR",
	ENOTCONN:        "ENOTCONN",
	EISCONN:         "EISCONN",
	EALREADY:        "EALREADY",
	EINTR:           "EINTR",
	ETIMEDOUT:       "ETIMEDOUT",
	ECANCELED:       "ECANCELED",
	EACCES:          "EACCES",
	ELOOP:           "ELOOP",
	ENAMETOOLONG:    "ENAMETOOLONG",
	EXDEV:           "EXDEV",
	EBUSY:           "EBUSY",
	EEXIST:          "EEXIST",
	EADDRINUSE:      "EADDRINUSE",
	EDESTADDRREQ:    "EDESTADDRREQ",
	ENXIO:           "ENXIO",
	EPROTONOSUPPORT: "EPROTONOSUPPORT",
	ESOCKTNOSUPPORT: "ESOCKTNOSUPPORT",
	EOPNOTSUPP:      "EOPNOTSUPP",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if name, ok := names[e]; ok {
		return name
	}
	return fmt.Sprintf("errno(%d)", int32(e))
}

// Is allows errors.Is(err, errno.EAGAIN) to match both a bare Errno and a
// wrapped one, without requiring pointer identity.
func (e Errno) Is(target error) bool {
	t, ok := target.(Errno)
	return ok && t == e
}
