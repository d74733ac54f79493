package ports

import "riverview/domain/stream"

// ResultWriterPort receives result rows in order. Close flushes and must be
// called once, also after a failed run.
type ResultWriterPort interface {
	Write(row stream.ResultRow) error
	Close() error
	// Path is where the output ends up
	Path() string
}

// ResultWriterFactory opens the writer for a run
type ResultWriterFactory func(meta stream.RunMeta, plot bool) (ResultWriterPort, error)
