//go:build linux

package jt9decode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

/*------------------------------------------------------------------
 *
 * Function:	ftok
 *
 * Purpose:	Same as the C library ftok(3) so we arrive at the same
 *		System V IPC key as Qt does inside jt9.
 *
 * Description:	glibc packs the low 16 bits of the inode, the low 8 bits
 *		of the device and the low 8 bits of the project id.
 *
 *------------------------------------------------------------------*/

func ftok(path string, projID byte) (int, error) {
	var st unix.Stat_t

	var err = unix.Stat(path, &st)
	if err != nil {
		return 0, err
	}

	return int((uint64(st.Ino) & 0xffff) | ((uint64(st.Dev) & 0xff) << 16) | (uint64(projID) << 24)), nil //nolint:gosec
}

type sysvRegion struct {
	key     string
	keyFile string
	id      int
	data    []byte
}

func createSysvRegion(key string, size int) (Region, error) {
	var keyFile = filepath.Join(os.TempDir(), qtNativeKey(key))

	// Qt insists the key file exists, ftok needs an inode.
	var f, createErr = os.OpenFile(keyFile, os.O_RDWR|os.O_CREATE, 0640)
	if createErr != nil {
		return nil, fmt.Errorf("%w: create key file %s: %w", ErrProtocol, keyFile, createErr)
	}
	f.Close()

	var ipcKey, ftokErr = ftok(keyFile, 'Q')
	if ftokErr != nil {
		return nil, fmt.Errorf("%w: ftok %s: %w", ErrProtocol, keyFile, ftokErr)
	}

	var id, getErr = unix.SysvShmGet(ipcKey, size, 0600|unix.IPC_CREAT|unix.IPC_EXCL)
	if errors.Is(getErr, unix.EEXIST) {
		// Left over from an earlier run.  Same as attach() then detach()
		// in Qt: it goes away once nobody has it mapped.
		var removeErr = removeStaleSysv(ipcKey)
		if removeErr != nil {
			return nil, removeErr
		}

		id, getErr = unix.SysvShmGet(ipcKey, size, 0600|unix.IPC_CREAT|unix.IPC_EXCL)
	}

	if getErr != nil {
		return nil, fmt.Errorf("%w: shmget %#x size %d: %w", ErrProtocol, ipcKey, size, getErr)
	}

	var data, attachErr = unix.SysvShmAttach(id, 0, 0)
	if attachErr != nil {
		unix.SysvShmCtl(id, unix.IPC_RMID, nil) //nolint:errcheck
		return nil, fmt.Errorf("%w: shmat: %w", ErrProtocol, attachErr)
	}

	if len(data) != size {
		unix.SysvShmDetach(data)                //nolint:errcheck
		unix.SysvShmCtl(id, unix.IPC_RMID, nil) //nolint:errcheck
		return nil, fmt.Errorf("%w: segment is %d bytes, expected %d", ErrProtocol, len(data), size)
	}

	return &sysvRegion{key: key, keyFile: keyFile, id: id, data: data}, nil
}

func removeStaleSysv(ipcKey int) error {
	var id, err = unix.SysvShmGet(ipcKey, 0, 0)
	if err != nil {
		return fmt.Errorf("%w: shmget existing %#x: %w", ErrProtocol, ipcKey, err)
	}

	var desc unix.SysvShmDesc
	if _, err = unix.SysvShmCtl(id, unix.IPC_STAT, &desc); err != nil {
		return fmt.Errorf("%w: shmctl IPC_STAT: %w", ErrProtocol, err)
	}

	if desc.Nattch != 0 {
		return fmt.Errorf("%w: shared memory %#x is still attached by %d process(es), is another decoder running?", ErrProtocol, ipcKey, desc.Nattch)
	}

	if _, err = unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("%w: shmctl IPC_RMID: %w", ErrProtocol, err)
	}

	return nil
}

func (r *sysvRegion) Key() string   { return r.key }
func (r *sysvRegion) Bytes() []byte { return r.data }

func (r *sysvRegion) Close() error {
	if r.data == nil {
		return nil
	}

	var err = unix.SysvShmDetach(r.data)
	r.data = nil

	// Mark for removal.  The kernel keeps it until the last detach,
	// so an engine that is somehow still attached is not disturbed.
	if _, ctlErr := unix.SysvShmCtl(r.id, unix.IPC_RMID, nil); ctlErr != nil && err == nil {
		err = ctlErr
	}

	os.Remove(r.keyFile) //nolint:errcheck

	return err
}

type posixRegion struct {
	key  string
	path string
	fd   int
	data []byte
}

func createPosixRegion(key string, size int) (Region, error) {
	// shm_open("/name") is a file in /dev/shm on Linux.
	var path = filepath.Join("/dev/shm", qtNativeKey(key))

	var fd, err = unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if errors.Is(err, unix.EEXIST) {
		unix.Unlink(path) //nolint:errcheck
		fd, err = unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrProtocol, path, err)
	}

	if err = unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)    //nolint:errcheck
		unix.Unlink(path) //nolint:errcheck
		return nil, fmt.Errorf("%w: ftruncate: %w", ErrProtocol, err)
	}

	var data, mmapErr = unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if mmapErr != nil {
		unix.Close(fd)    //nolint:errcheck
		unix.Unlink(path) //nolint:errcheck
		return nil, fmt.Errorf("%w: mmap: %w", ErrProtocol, mmapErr)
	}

	return &posixRegion{key: key, path: path, fd: fd, data: data}, nil
}

func (r *posixRegion) Key() string   { return r.key }
func (r *posixRegion) Bytes() []byte { return r.data }

func (r *posixRegion) Close() error {
	if r.data == nil {
		return nil
	}

	var err = unix.Munmap(r.data)
	r.data = nil

	unix.Close(r.fd)    //nolint:errcheck
	unix.Unlink(r.path) //nolint:errcheck

	return err
}
