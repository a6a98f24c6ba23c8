package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
)

// defaultOutputFile is used when -o is omitted and the URL path ends in '/'.
const defaultOutputFile = "index.html"

// autoOffset requests resuming at the current size of the output file.
const autoOffset = -1

// outputName picks the file to write: the -o value if given, otherwise the
// last URL path segment.
func outputName(flagValue, urlName string) string {
	if flagValue != "" {
		return flagValue
	}
	if urlName != "" {
		return urlName
	}
	return defaultOutputFile
}

func isStdout(name string) bool {
	return name == "-"
}

// parseOffset parses the -c argument. "-" selects auto detection.
func parseOffset(s string) (int64, error) {
	if s == "-" {
		return autoOffset, nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("invalid OFFSET")
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid OFFSET")
	}
	return n, nil
}

// resolveOffset turns autoOffset into the size of the existing output
// file. Standard output cannot be resumed automatically.
func resolveOffset(name string, offset int64) (int64, error) {
	if offset != autoOffset {
		return offset, nil
	}
	if isStdout(name) {
		return 0, nil
	}
	st, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat output file: %w", err)
	}
	return st.Size(), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens name for writing at offset. A zero offset truncates the
// file; otherwise it is truncated to offset and written from there.
func openOutput(name string, offset int64, stdout io.Writer) (io.WriteCloser, error) {
	if isStdout(name) {
		return nopCloser{stdout}, nil
	}

	flags := os.O_WRONLY | os.O_CREATE
	if offset == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(name, flags, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	if offset > 0 {
		if err := f.Truncate(offset); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to truncate output file: %w", err)
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek on output file failed: %w", err)
		}
	}
	return f, nil
}
