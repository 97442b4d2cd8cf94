package interfaces

// Media is the storage a simulated controller moves command data to and
// from. The shape follows io.ReaderAt and io.WriterAt.
type Media interface {
	// ReadAt reads len(p) bytes into p starting at offset off.
	// A short read returns a non-nil error.
	//
	// Implementations must not retain p.
	ReadAt(p []byte, off int64) (n int, err error)

	// WriteAt writes len(p) bytes from p at offset off.
	// A short write returns a non-nil error.
	//
	// Implementations must not retain p.
	WriteAt(p []byte, off int64) (n int, err error)

	// Size returns the capacity in bytes.
	Size() int64

	// Flush is called for cache flush commands.
	Flush() error

	// Close releases the media. No other method may be called afterwards.
	Close() error
}

// StatMedia is an optional interface that reports media statistics.
type StatMedia interface {
	Media

	// Stats returns media-specific counters keyed by name.
	Stats() map[string]interface{}
}
