package hl7adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oarkflow/log"

	"github.com/oarkflow/hl7analyzer/pkg/contracts"
)

// DefaultExtensions are the file types picked up when a directory is scanned.
var DefaultExtensions = []string{".txt", ".hl7", ".dat"}

// FileSourceOption customizes HL7 file source behaviour.
type FileSourceOption func(*FileSource)

// WithMessageSplit makes the source emit one message per MSH segment or
// blank-line delimited block instead of one message per file.
func WithMessageSplit(enabled bool) FileSourceOption {
	return func(fs *FileSource) {
		fs.split = enabled
	}
}

// FileSource streams HL7 messages from files, directories and glob patterns.
type FileSource struct {
	paths  []string
	split  bool
	buffer int
}

// NewFileSource builds a FileSource over paths.
func NewFileSource(paths []string, opts ...FileSourceOption) *FileSource {
	fs := &FileSource{
		paths:  paths,
		buffer: 16,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Setup validates that every path exists or, for a pattern, is well formed.
func (fs *FileSource) Setup(_ context.Context) error {
	if len(fs.paths) == 0 {
		return fmt.Errorf("hl7 file source: no input paths")
	}
	for _, p := range fs.paths {
		if p == "" {
			return fmt.Errorf("hl7 file source: path is empty")
		}
		if isPattern(p) {
			if _, err := filepath.Match(p, ""); err != nil {
				return fmt.Errorf("hl7 file source: bad pattern %q: %w", p, err)
			}
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("hl7 file source: %w", err)
		}
	}
	return nil
}

// Files returns the files Extract would read, in order.
func (fs *FileSource) Files(opts ...contracts.Option) ([]string, error) {
	cfg := &contracts.SourceOption{Extensions: DefaultExtensions}
	for _, opt := range opts {
		opt(cfg)
	}
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}
	for _, p := range fs.paths {
		if isPattern(p) {
			matches, err := filepath.Glob(p)
			if err != nil {
				return nil, err
			}
			sort.Strings(matches)
			for _, m := range matches {
				if info, err := os.Stat(m); err == nil && !info.IsDir() {
					add(m)
				}
			}
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !hasExtension(entry.Name(), cfg.Extensions) {
				continue
			}
			add(filepath.Join(p, entry.Name()))
		}
	}
	return files, nil
}

// Extract streams the messages of every input file. A file that cannot be
// read yields one message carrying the read error.
func (fs *FileSource) Extract(ctx context.Context, opts ...contracts.Option) (<-chan contracts.Message, error) {
	files, err := fs.Files(opts...)
	if err != nil {
		return nil, err
	}
	out := make(chan contracts.Message, fs.buffer)
	go func() {
		defer close(out)
		for _, path := range files {
			if ctx.Err() != nil {
				return
			}
			if err := fs.emitFile(ctx, path, out); err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (fs *FileSource) emitFile(ctx context.Context, path string, out chan<- contracts.Message) error {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[HL7Source] cannot read %s: %v", path, err)
		return send(ctx, out, contracts.Message{FileName: name, Path: path, Err: err})
	}
	if !fs.split {
		return send(ctx, out, contracts.Message{FileName: name, Path: path, Content: data})
	}
	for i, content := range SplitMessages(data) {
		msg := contracts.Message{FileName: name, Path: path, Index: i, Content: content}
		if err := send(ctx, out, msg); err != nil {
			return err
		}
	}
	return nil
}

func send(ctx context.Context, out chan<- contracts.Message, msg contracts.Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- msg:
		return nil
	}
}

// Load drains Extract into a slice.
func (fs *FileSource) Load(ctx context.Context, opts ...contracts.Option) ([]contracts.Message, error) {
	ch, err := fs.Extract(ctx, opts...)
	if err != nil {
		return nil, err
	}
	var msgs []contracts.Message
	for msg := range ch {
		msgs = append(msgs, msg)
	}
	return msgs, ctx.Err()
}

// Close implements contracts.Source.
func (fs *FileSource) Close() error {
	return nil
}

// SplitMessages cuts a file holding several messages at every MSH segment and
// at blank lines. Segments of one message are joined with \r.
func SplitMessages(data []byte) [][]byte {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, 0, 128*1024)
	scanner.Buffer(buf, 4*1024*1024)
	scanner.Split(scanSegments)

	var messages [][]byte
	var current bytes.Buffer
	flush := func() {
		if current.Len() == 0 {
			return
		}
		messages = append(messages, bytes.Clone(current.Bytes()))
		current.Reset()
	}
	for scanner.Scan() {
		line := scanner.Bytes()
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			flush()
			continue
		}
		if bytes.HasPrefix(trimmed, []byte("MSH")) {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\r')
		}
		current.Write(line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		log.Printf("[HL7Source] scan error: %v", err)
	}
	return messages
}

// scanSegments is a bufio.SplitFunc that breaks on \r, \n or \r\n.
func scanSegments(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func isPattern(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

func hasExtension(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// MemorySource serves messages already held in memory, such as uploads.
type MemorySource struct {
	messages []contracts.Message
}

// NewMemorySource returns a source over msgs.
func NewMemorySource(msgs ...contracts.Message) *MemorySource {
	return &MemorySource{messages: msgs}
}

func (ms *MemorySource) Setup(_ context.Context) error { return nil }

func (ms *MemorySource) Extract(ctx context.Context, _ ...contracts.Option) (<-chan contracts.Message, error) {
	out := make(chan contracts.Message)
	go func() {
		defer close(out)
		for _, msg := range ms.messages {
			if err := send(ctx, out, msg); err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (ms *MemorySource) Close() error { return nil }

var (
	_ contracts.Source = (*FileSource)(nil)
	_ contracts.Source = (*MemorySource)(nil)
)
