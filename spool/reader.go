package spool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Line is one decoded spool line together with the absolute byte offset
// just past its terminating newline. Replay persists these offsets so the
// cursor always lands on a line boundary.
type Line struct {
	Record Record
	// EndOffset is the first byte after this line's newline.
	EndOffset int64
}

// ReadResult is the outcome of one line-aligned read.
type ReadResult struct {
	// Lines parsed from complete lines of the read window.
	Lines []Line
	// NewOffset is the offset just past the last complete line of the
	// window. Bytes of a trailing incomplete line are not consumed and
	// will be re-read by the next call.
	NewOffset int64
	// EOF is set when |offset| was at or past the end of the file.
	EOF bool
}

// ReadFrom reads up to |maxBytes| from |path| starting at |offset|, and
// decodes the complete JSONL lines of the window. Malformed lines are
// skipped. The returned offsets never cross an incomplete trailing line.
func ReadFrom(path string, offset, maxBytes int64) (ReadResult, error) {
	var f, err = os.Open(path)
	if err != nil {
		return ReadResult{}, fmt.Errorf("opening spool: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return ReadResult{}, fmt.Errorf("stat spool: %w", err)
	}
	if offset >= fi.Size() {
		return ReadResult{NewOffset: offset, EOF: true}, nil
	}

	var want = fi.Size() - offset
	if want > maxBytes {
		want = maxBytes
	}
	var buf = make([]byte, want)
	if _, err = f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return ReadResult{}, fmt.Errorf("reading spool: %w", err)
	}

	var last = bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		// No complete line in the window; nothing is consumed.
		return ReadResult{NewOffset: offset}, nil
	}

	var out = ReadResult{NewOffset: offset + int64(last) + 1}
	var pos int
	for pos <= last {
		var nl = bytes.IndexByte(buf[pos:last+1], '\n')
		var line = buf[pos : pos+nl]
		var end = offset + int64(pos+nl) + 1
		pos += nl + 1

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			log.WithFields(log.Fields{"path": path, "err": err}).
				Debug("skipping malformed spool line")
			continue
		}
		out.Lines = append(out.Lines, Line{Record: rec, EndOffset: end})
	}
	return out, nil
}
