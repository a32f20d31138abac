package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

const readBufferSize = 1 << 16

// OpenError reports an input that could not be opened. It is fatal for the
// worker owning the input.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string { return fmt.Sprintf("open %s: %v", e.Path, e.Err) }

func (e *OpenError) Unwrap() error { return e.Err }

// DecodeError reports a single malformed element. The stream stays usable.
type DecodeError struct {
	Path  string
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("%s: record %d: %v", e.Path, e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder incrementally decodes concatenated JSON values. After a syntax
// error it skips to the next line and carries on.
type Decoder struct {
	// src is what dec reads from; after a resync it chains the unread
	// lookahead of the previous decoder in front of the remaining input.
	src io.Reader
	dec *json.Decoder
	n   int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	src := bufio.NewReaderSize(r, readBufferSize)
	return &Decoder{src: src, dec: json.NewDecoder(src)}
}

// Next returns the next entry, a *DecodeError for a malformed one, or io.EOF.
// Any other error comes from the underlying reader and ends the stream.
func (d *Decoder) Next() (Entry, error) {
	var e Entry
	err := d.dec.Decode(&e)
	if err == nil {
		d.n++
		return e, nil
	}
	if err == io.EOF {
		return Entry{}, io.EOF
	}
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		// the offending value was consumed, the decoder is still aligned
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		if rerr := d.resync(); rerr != nil {
			return Entry{}, rerr
		}
	default:
		return Entry{}, err
	}
	d.n++
	return Entry{}, &DecodeError{Index: d.n, Err: err}
}

// Count returns the number of values decoded or rejected so far.
func (d *Decoder) Count() int { return d.n }

// resync drops the rest of the line holding the malformed value. The
// decoder's lookahead never starts with the newline it is looking for,
// so each call discards at least one byte.
func (d *Decoder) resync() error {
	rest, err := io.ReadAll(d.dec.Buffered())
	if err != nil {
		return err
	}
	rest = bytes.TrimLeft(rest, " \t\r\n")
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		d.src = io.MultiReader(bytes.NewReader(rest[i+1:]), d.src)
		d.dec = json.NewDecoder(d.src)
		return nil
	}
	br, ok := d.src.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(d.src, readBufferSize)
	}
	for {
		_, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			return err
		}
		break
	}
	d.src = br
	d.dec = json.NewDecoder(br)
	return nil
}

// Source is a lazy, non-restartable sequence of records read from one file.
type Source struct {
	path string
	f    *os.File
	dec  *Decoder
}

// Open opens path as a record source.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return &Source{path: path, f: f, dec: NewDecoder(f)}, nil
}

// Path returns the file the source reads from.
func (s *Source) Path() string { return s.path }

// Next returns the next valid record. Malformed or invalid elements come back
// as *DecodeError and the caller may keep reading; io.EOF ends the sequence.
func (s *Source) Next() (Record, error) {
	e, err := s.dec.Next()
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = s.path
			return Record{}, de
		}
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	rec, err := FromEntry(e)
	if err != nil {
		return Record{}, &DecodeError{Path: s.path, Index: s.dec.Count(), Err: err}
	}
	return rec, nil
}

// NextEntry returns the next raw entry without validation.
func (s *Source) NextEntry() (Entry, error) {
	e, err := s.dec.Next()
	var de *DecodeError
	if errors.As(err, &de) {
		de.Path = s.path
	}
	return e, err
}

// Count returns the number of elements read so far, valid or not.
func (s *Source) Count() int { return s.dec.Count() }

// Close releases the underlying file.
func (s *Source) Close() error { return s.f.Close() }
