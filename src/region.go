package jt9decode

import (
	"crypto/sha1" //nolint:gosec // Qt derives its key names with SHA-1, we must match.
	"encoding/hex"
	"fmt"
	"strings"
)

// Region is a block of memory that the engine can map too.
type Region interface {
	// Key is what the engine is told with "-s" to find the region.
	Key() string
	Bytes() []byte
	Close() error
}

const (
	SHM_BACKEND_SYSV  = "sysv"  // Qt's default on Linux.
	SHM_BACKEND_POSIX = "posix" // Qt built with QT_POSIX_IPC.
	SHM_BACKEND_HEAP  = "heap"  // Private memory, for testing without an engine.
)

// OpenRegion creates a fresh region of the given size for the engine to
// attach to.
func OpenRegion(backend string, key string, size int) (Region, error) {
	switch backend {
	case SHM_BACKEND_SYSV, "":
		return createSysvRegion(key, size)
	case SHM_BACKEND_POSIX:
		return createPosixRegion(key, size)
	case SHM_BACKEND_HEAP:
		return NewHeapRegion(key, size), nil
	default:
		return nil, fmt.Errorf("%w: unknown shared memory backend %q", ErrProtocol, backend)
	}
}

/*------------------------------------------------------------------
 *
 * Function:	qtNativeKey
 *
 * Purpose:	Turn a QSharedMemory key into the name Qt actually uses.
 *
 * Inputs:	key	- As given to jt9 with -s, e.g. "JT9DECODE".
 *
 * Returns:	"qipc_sharedmemory_" + the ASCII letters of the key +
 *		hex SHA-1 of the key.
 *
 * Description:	jt9 calls QSharedMemory::setKey(key) then attach(), so
 *		whatever we create has to be findable under this name.
 *		The System V flavour uses it as a file name in the temp
 *		directory (fed to ftok), the POSIX flavour as a shm_open name.
 *
 *------------------------------------------------------------------*/

func qtNativeKey(key string) string {
	var sb strings.Builder

	sb.WriteString("qipc_sharedmemory_")

	for _, ch := range key {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') {
			sb.WriteRune(ch)
		}
	}

	var sum = sha1.Sum([]byte(key)) //nolint:gosec
	sb.WriteString(hex.EncodeToString(sum[:]))

	return sb.String()
}

type heapRegion struct {
	key  string
	data []byte
}

// NewHeapRegion returns a region in ordinary process memory.  Nothing
// outside this process can see it.
func NewHeapRegion(key string, size int) Region {
	return &heapRegion{key: key, data: make([]byte, size)}
}

func (h *heapRegion) Key() string   { return h.key }
func (h *heapRegion) Bytes() []byte { return h.data }

func (h *heapRegion) Close() error {
	h.data = nil
	return nil
}
