// Package storage defines the workspace file-system abstraction.
package storage

// Provider is the interface for workspace file operations. Relative paths
// resolve against the workspace root; absolute paths must lie inside it.
// Paths outside the root fail with ErrOutsideRoot.
type Provider interface {
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// Mkdir creates a single directory. It fails with an error satisfying
	// errors.Is(err, fs.ErrExist) when path is already present.
	Mkdir(path string) error
	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error
	// ReadDirNames returns the entry names of the directory at path.
	ReadDirNames(path string) ([]string, error)
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
}
