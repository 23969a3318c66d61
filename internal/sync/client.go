package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Tail connects to a TCP feed and writes one line per event to out until the
// connection drops or ctx is done.
func Tail(ctx context.Context, addr string, out io.Writer, raw bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if raw {
			fmt.Fprintln(out, string(line))
			continue
		}
		fmt.Fprintln(out, FormatLine(line))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

// Follow runs Tail and reconnects after retry until ctx is done.
func Follow(ctx context.Context, addr string, out io.Writer, raw bool, retry time.Duration, log *logrus.Entry) error {
	for {
		err := Tail(ctx, addr, out, raw)
		if ctx.Err() != nil {
			return nil
		}
		log.WithField("addr", addr).WithError(err).Warn("feed disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retry):
		}
	}
}

// FormatLine renders a feed event for a terminal. Lines that are not events
// come back unchanged.
func FormatLine(line []byte) string {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
		return string(line)
	}

	switch ev.Type {
	case EventWelcome:
		return fmt.Sprintf("connected (%d clients)", ev.Clients)
	case EventState:
		return fmt.Sprintf("[%s] %s -> %s", shortID(ev.RunID), ev.From, ev.To)
	case EventProgress:
		if p := ev.Progress; p != nil {
			return fmt.Sprintf("[%s] page %d: %d/%d (%.1f%%)",
				shortID(ev.RunID), p.Page, p.Processed, p.Total, p.Percentage)
		}
	case EventFinished:
		if r := ev.Report; r != nil {
			if r.Error != "" {
				return fmt.Sprintf("[%s] failed after %d/%d videos: %s",
					shortID(ev.RunID), r.ProcessedRecords, r.TotalRecords, r.Error)
			}
			return fmt.Sprintf("[%s] completed: %d videos, %d sources, %d episodes, %d orphan sources",
				shortID(ev.RunID), r.ProcessedRecords, r.Final.Sources, r.Final.Episodes, r.Final.OrphanSources)
		}
	}
	return string(line)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
