package contracts

import (
	"context"

	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// Message is the raw content of one input artifact.
type Message struct {
	// FileName is the originating file name used to tag table rows and records.
	FileName string
	// Path is where the message was read from, if it came from disk.
	Path string
	// Index is the position of the message inside its file when a file holds
	// several messages. It is 0 otherwise.
	Index int
	// Content holds the undecoded bytes.
	Content []byte
	// Err is set when the artifact could not be read. Content is empty then.
	Err error
}

type SourceOption struct {
	Extensions []string
}

// Option defines a function type for configuring a source extraction.
type Option func(*SourceOption)

// WithExtensions restricts directory scans to the given file extensions.
func WithExtensions(exts ...string) Option {
	return func(a *SourceOption) {
		a.Extensions = exts
	}
}

type Source interface {
	Setup(ctx context.Context) error
	Extract(ctx context.Context, opts ...Option) (<-chan Message, error)
	Close() error
}

type Loader interface {
	Setup(ctx context.Context) error
	StoreBatch(ctx context.Context, batch []utils.Record) error
	Close() error
}

type Transformer interface {
	Name() string
	Transform(ctx context.Context, rec utils.Record) (utils.Record, error)
}

type Appender[T any] interface {
	Append(record T) error
	AppendBatch(records []T) error
	Close() error
}
