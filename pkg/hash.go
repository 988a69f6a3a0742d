package fileintegrity

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// HashAlgorithm represents a hash algorithm configuration
type HashAlgorithm struct {
	Name    string // persisted identifier, e.g. "SHA-256"
	TypeID  uint16
	Size    int // digest size in bytes
	NewFunc func() hash.Hash
}

// HexLen returns the length of a hex-encoded fingerprint for this algorithm
func (a *HashAlgorithm) HexLen() int {
	return a.Size * 2
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	typeID, ok := HashTypeFromName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
	return GetHashAlgorithmByType(typeID)
}

// GetHashAlgorithmByType returns the hash algorithm configuration for the given type ID
func GetHashAlgorithmByType(typeID uint16) (*HashAlgorithm, error) {
	switch typeID {
	case HashTypeSHA1:
		return &HashAlgorithm{
			Name:    HashTypeName(HashTypeSHA1),
			TypeID:  HashTypeSHA1,
			Size:    HashSizeSHA1,
			NewFunc: func() hash.Hash { return sha1.New() },
		}, nil
	case HashTypeSHA256:
		return &HashAlgorithm{
			Name:    HashTypeName(HashTypeSHA256),
			TypeID:  HashTypeSHA256,
			Size:    HashSizeSHA256,
			NewFunc: func() hash.Hash { return sha256.New() },
		}, nil
	case HashTypeSHA512:
		return &HashAlgorithm{
			Name:    HashTypeName(HashTypeSHA512),
			TypeID:  HashTypeSHA512,
			Size:    HashSizeSHA512,
			NewFunc: func() hash.Hash { return sha512.New() },
		}, nil
	case HashTypeBLAKE3:
		return &HashAlgorithm{
			Name:    HashTypeName(HashTypeBLAKE3),
			TypeID:  HashTypeBLAKE3,
			Size:    HashSizeBLAKE3,
			NewFunc: func() hash.Hash { return blake3.New() },
		}, nil
	default:
		return nil, fmt.Errorf("%w: type ID %d", ErrUnsupportedAlgorithm, typeID)
	}
}

// HashFile streams a file through the algorithm in bufferSize chunks and
// returns its fingerprint and the number of bytes read.
func HashFile(filePath string, algorithm *HashAlgorithm, bufferSize int) (FileRecord, error) {
	return HashFileInterruptible(filePath, algorithm, bufferSize, nil)
}

// HashFileInterruptible is HashFile with a shutdown check between buffer reads.
// A nil shutdownChan never fires.
func HashFileInterruptible(filePath string, algorithm *HashAlgorithm, bufferSize int, shutdownChan <-chan struct{}) (FileRecord, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	file, err := os.Open(filePath)
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: failed to open file %s: %w", ErrFilesystem, filePath, err)
	}
	defer file.Close()

	// Advisory only; not every filesystem supports it.
	_ = unix.Fadvise(int(file.Fd()), 0, 0, unix.FADV_SEQUENTIAL)

	hasher := algorithm.NewFunc()
	buffer := make([]byte, bufferSize)
	var size int64

	for {
		select {
		case <-shutdownChan:
			return FileRecord{}, fmt.Errorf("%w: hashing %s", ErrInterrupted, filePath)
		default:
		}

		n, err := file.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
			size += int64(n)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return FileRecord{}, fmt.Errorf("%w: failed to read from file %s: %w", ErrFilesystem, filePath, err)
		}
	}

	return FileRecord{
		Fingerprint: hex.EncodeToString(hasher.Sum(nil)),
		Size:        size,
	}, nil
}

// HashBytesToHexString calculates the hash of data and returns it as a hex string
func HashBytesToHexString(data []byte, algorithm *HashAlgorithm) string {
	hasher := algorithm.NewFunc()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// isValidFingerprint reports whether s is a lowercase or uppercase hex string
// of the length the algorithm produces.
func isValidFingerprint(s string, algorithm *HashAlgorithm) bool {
	if len(s) != algorithm.HexLen() {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
