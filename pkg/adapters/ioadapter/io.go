package ioadapter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/oarkflow/log"

	"github.com/oarkflow/hl7analyzer/pkg/adapters/hl7adapter"
	"github.com/oarkflow/hl7analyzer/pkg/contracts"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
	"github.com/oarkflow/hl7analyzer/pkg/utils/fileutil"
)

// StdinName is the file name given to messages read from a stream.
const StdinName = "stdin"

type Adapter struct {
	mode   string
	reader io.Reader
	writer io.Writer
	format string
	name   string
	split  bool

	header        []string
	headerWritten bool
	csvWriter     *csv.Writer
}

// NewSource reads HL7 messages from reader. name tags the messages and
// defaults to StdinName. With split set, the stream is cut at every MSH
// segment and blank line.
func NewSource(reader io.Reader, name string, split bool) *Adapter {
	if name == "" {
		name = StdinName
	}
	return &Adapter{
		mode:   "source",
		reader: reader,
		name:   name,
		split:  split,
	}
}

// NewLoader writes records to writer as CSV or JSON. header fixes the CSV
// column order; without it the sorted keys of the first record are used.
func NewLoader(writer io.Writer, format string, header ...string) *Adapter {
	return &Adapter{
		mode:   "loader",
		writer: writer,
		format: strings.ToLower(format),
		header: append([]string(nil), header...),
	}
}

func (ioa *Adapter) Setup(_ context.Context) error {
	switch ioa.mode {
	case "source":
		if ioa.reader == nil {
			return fmt.Errorf("IOAdapter: no reader")
		}
	case "loader":
		if ioa.writer == nil {
			return fmt.Errorf("IOAdapter: no writer")
		}
		if ioa.format != "csv" && ioa.format != "json" {
			return fmt.Errorf("IOAdapter: unsupported format %q", ioa.format)
		}
	}
	return nil
}

// Extract reads the whole stream before emitting, since a message only ends
// at the end of input.
func (ioa *Adapter) Extract(ctx context.Context, _ ...contracts.Option) (<-chan contracts.Message, error) {
	if ioa.mode != "source" {
		return nil, fmt.Errorf("IOAdapter not configured as source")
	}
	data, err := io.ReadAll(ioa.reader)
	if err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	var contents [][]byte
	if ioa.split {
		contents = hl7adapter.SplitMessages(data)
	} else {
		contents = [][]byte{data}
	}
	out := make(chan contracts.Message, len(contents))
	go func() {
		defer close(out)
		for i, content := range contents {
			msg := contracts.Message{FileName: ioa.name, Index: i, Content: content}
			select {
			case <-ctx.Done():
				return
			case out <- msg:
			}
		}
	}()
	return out, nil
}

// StoreBatch writes records. CSV output carries its header once, before the
// first batch; each JSON batch is written as one indented array.
func (ioa *Adapter) StoreBatch(_ context.Context, records []utils.Record) error {
	if ioa.mode != "loader" {
		return fmt.Errorf("IOAdapter not configured as loader")
	}
	switch ioa.format {
	case "csv":
		if ioa.csvWriter == nil {
			ioa.csvWriter = csv.NewWriter(ioa.writer)
		}
		if !ioa.headerWritten {
			if len(ioa.header) == 0 && len(records) > 0 {
				ioa.header = fileutil.ExtractCSVHeader(records[0])
			}
			if err := ioa.csvWriter.Write(ioa.header); err != nil {
				return err
			}
			ioa.headerWritten = true
		}
		for _, rec := range records {
			row, err := fileutil.BuildCSVRow(ioa.header, rec)
			if err != nil {
				return err
			}
			if err := ioa.csvWriter.Write(row); err != nil {
				return err
			}
		}
		ioa.csvWriter.Flush()
		return ioa.csvWriter.Error()
	case "json":
		if records == nil {
			records = []utils.Record{}
		}
		return fileutil.WriteJSON(ioa.writer, records)
	default:
		return fmt.Errorf("unsupported format %q", ioa.format)
	}
}

func (ioa *Adapter) Close() error {
	if ioa.mode == "source" {
		if closer, ok := ioa.reader.(io.Closer); ok {
			return closer.Close()
		}
	}
	if ioa.csvWriter != nil {
		ioa.csvWriter.Flush()
		if err := ioa.csvWriter.Error(); err != nil {
			log.Printf("[IOLoader] flush error: %v", err)
			return err
		}
	}
	return nil
}

var (
	_ contracts.Source = (*Adapter)(nil)
	_ contracts.Loader = (*Adapter)(nil)
)
