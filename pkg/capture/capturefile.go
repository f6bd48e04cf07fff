package capture

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/tufeigunchu/captrace/pkg/event"
)

// CaptureFileReader streams events back out of a file written by a
// SaveToFileProcessor.
type CaptureFileReader struct {
	file    *os.File
	decoder *zstd.Decoder
	reader  *bufio.Reader
}

func OpenCaptureFile(path string) (*CaptureFileReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening capture file")
	}
	decoder, err := zstd.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "initializing capture file decompression")
	}

	return &CaptureFileReader{
		file:    file,
		decoder: decoder,
		reader:  bufio.NewReader(decoder),
	}, nil
}

// ReadEvent returns the next event in the file, or io.EOF after the last one.
func (r *CaptureFileReader) ReadEvent() (event.CaptureEvent, error) {
	line, err := r.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(bytes.TrimSpace(line)) > 0 {
			// Final record without trailing newline, decode it anyway.
			return event.Unmarshal(line)
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "reading capture file")
	}

	return event.Unmarshal(line)
}

func (r *CaptureFileReader) Close() error {
	r.decoder.Close()

	return errors.Wrap(r.file.Close(), "closing capture file")
}
