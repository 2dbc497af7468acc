package fileutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/oarkflow/json"
)

// ErrInvalidJSONFile reports an existing file that is not a JSON array.
var ErrInvalidJSONFile = errors.New("invalid JSON file")

// JSONOption is a functional option for JSONAppender.
type JSONOption[T any] func(*JSONAppender[T])

// WithDedup skips elements whose JSON encoding is already in the file.
func WithDedup[T any]() JSONOption[T] {
	return func(ja *JSONAppender[T]) {
		ja.dedup = true
	}
}

// JSONAppender appends elements of type T to a JSON array stored in a file.
// An exclusive file lock is held while a batch is written.
type JSONAppender[T any] struct {
	filePath       string
	file           *os.File
	fileLock       *flock.Flock
	mu             sync.Mutex
	tailBufferSize int
	dedup          bool
	seen           map[string]struct{}
}

// NewJSONAppender opens filePath. Without appendMode any existing content is
// replaced by an empty array.
func NewJSONAppender[T any](filePath string, appendMode bool, opts ...JSONOption[T]) (*JSONAppender[T], error) {
	flags := os.O_RDWR | os.O_CREATE
	if !appendMode {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(filePath, flags, 0o644)
	if err != nil {
		return nil, err
	}
	ja := &JSONAppender[T]{
		filePath:       filePath,
		file:           f,
		fileLock:       flock.New(filePath + ".lock"),
		tailBufferSize: 1024,
		seen:           make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ja)
	}
	if err := ja.validateOrInitialize(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if ja.dedup {
		if err := ja.loadSeen(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return ja, nil
}

// validateOrInitialize checks that the file holds a JSON array, writing an
// empty one into an empty file.
func (ja *JSONAppender[T]) validateOrInitialize() error {
	fi, err := ja.file.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		if _, err := ja.file.WriteAt([]byte("[\n]\n"), 0); err != nil {
			return err
		}
		return ja.file.Sync()
	}
	size := fi.Size()
	headSize := min(int64(10), size)
	head := make([]byte, headSize)
	if _, err := ja.file.ReadAt(head, 0); err != nil && err != io.EOF {
		return err
	}
	if !bytes.Contains(head, []byte("[")) {
		return errors.Join(ErrInvalidJSONFile, errors.New("missing opening bracket"))
	}
	tailSize := min(int64(10), size)
	tail := make([]byte, tailSize)
	if _, err := ja.file.ReadAt(tail, size-tailSize); err != nil && err != io.EOF {
		return err
	}
	if !bytes.Contains(tail, []byte("]")) {
		return errors.Join(ErrInvalidJSONFile, errors.New("missing closing bracket"))
	}
	return nil
}

func (ja *JSONAppender[T]) loadSeen() error {
	content, err := os.ReadFile(ja.filePath)
	if err != nil {
		return err
	}
	var existing []T
	if err := json.Unmarshal(content, &existing); err != nil {
		return err
	}
	for _, v := range existing {
		key, err := json.Marshal(v)
		if err != nil {
			return err
		}
		ja.seen[string(key)] = struct{}{}
	}
	return nil
}

// Append appends a single element of type T.
func (ja *JSONAppender[T]) Append(element T) error {
	return ja.AppendBatch([]T{element})
}

// AppendBatch rewrites the closing bracket of the array so that the file
// stays a valid JSON array after every batch.
func (ja *JSONAppender[T]) AppendBatch(elements []T) error {
	ja.mu.Lock()
	defer ja.mu.Unlock()
	if err := ja.fileLock.Lock(); err != nil {
		return err
	}
	defer func() {
		_ = ja.fileLock.Unlock()
	}()

	encoded := make([][]byte, 0, len(elements))
	for _, element := range elements {
		data, err := json.Marshal(element)
		if err != nil {
			return err
		}
		if ja.dedup {
			if _, dup := ja.seen[string(data)]; dup {
				continue
			}
			ja.seen[string(data)] = struct{}{}
		}
		encoded = append(encoded, data)
	}
	if len(encoded) == 0 {
		return nil
	}

	fi, err := ja.file.Stat()
	if err != nil {
		return err
	}
	tailSize := min(int64(ja.tailBufferSize), fi.Size())
	offset := fi.Size() - tailSize
	buf := make([]byte, tailSize)
	if _, err := ja.file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return err
	}
	lastBracket := bytes.LastIndexByte(buf, ']')
	if lastBracket == -1 {
		return errors.Join(ErrInvalidJSONFile, errors.New("missing closing bracket"))
	}
	pos := lastBracket - 1
	for pos >= 0 && unicode.IsSpace(rune(buf[pos])) {
		pos--
	}
	if pos < 0 {
		return errors.Join(ErrInvalidJSONFile, errors.New("no content before closing bracket"))
	}
	end := offset + int64(pos) + 1
	if err := ja.file.Truncate(end); err != nil {
		return err
	}

	var out bytes.Buffer
	if buf[pos] == '[' {
		out.WriteString("\n  ")
	} else {
		out.WriteString(",\n  ")
	}
	out.Write(bytes.Join(encoded, []byte(",\n  ")))
	out.WriteString("\n]\n")
	if _, err := ja.file.WriteAt(out.Bytes(), end); err != nil {
		return err
	}
	return ja.file.Sync()
}

// Close closes the underlying file.
func (ja *JSONAppender[T]) Close() error {
	ja.mu.Lock()
	defer ja.mu.Unlock()
	return ja.file.Close()
}
