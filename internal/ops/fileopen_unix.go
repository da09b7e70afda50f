//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/zerx-lab/penbridge/internal/errors"
)

// openFileNoFollow opens a file for writing with O_NOFOLLOW so a symlink
// in the final path component is rejected rather than followed. O_CLOEXEC
// keeps the fd from leaking across exec.
//
// O_NOFOLLOW only covers the final component; ValidatePath already rules
// out nested paths whose directory components could be swapped.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write to symlink")
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openFileNoFollowRead opens a file for reading with O_NOFOLLOW and
// O_CLOEXEC. See openFileNoFollow for the coverage caveat.
func openFileNoFollowRead(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot read from symlink")
		}
		if stderrors.Is(err, syscall.ENOENT) {
			return nil, errors.NewNotFound(path)
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
