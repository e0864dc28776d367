package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nxadm/tail"
)

const initialLinesToShow = 1000 // Show last 1000 lines by default

// ShowLog prints the last n lines of the log file at path. With a
// non-empty query only lines containing it (case-insensitive) are kept.
func ShowLog(w io.Writer, path string, n int, query string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		n = initialLinesToShow
	}

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	// Ring of the last n matching lines
	ring := make([]string, 0, n)
	start := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !matches(line, query) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, line)
		} else {
			ring[start] = line
			start = (start + 1) % n
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	for i := range ring {
		fmt.Fprintln(w, ring[(start+i)%len(ring)])
	}
	return nil
}

// FollowLog streams lines appended to the log file until ctx is done
func FollowLog(ctx context.Context, w io.Writer, path, query string) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow log file: %w", err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			if matches(line.Text, query) {
				fmt.Fprintln(w, line.Text)
			}
		}
	}
}

func matches(line, query string) bool {
	return query == "" || strings.Contains(strings.ToLower(line), strings.ToLower(query))
}
