package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// FixedFormatWriter converts zerolog JSON lines into fixed-width columns
// for the rotating install log.
//
//	2026-10-19 12:00:00.000 [INF] [installer   ] Binary installed path=/Users/dev/.local/bin/xcbridge
//	2026-10-19 12:00:03.200 [ERR] [controller  ] Service did not start error="process not found"
type FixedFormatWriter struct {
	w io.Writer
}

// NewFixedFormatWriter creates a new FixedFormatWriter that wraps the given writer.
func NewFixedFormatWriter(w io.Writer) *FixedFormatWriter {
	return &FixedFormatWriter{w: w}
}

var levelAbbrev = map[string]string{
	"trace": "TRC",
	"debug": "DBG",
	"info":  "INF",
	"warn":  "WRN",
	"error": "ERR",
	"fatal": "FTL",
	"panic": "PNC",
}

const (
	componentWidth  = 12
	timestampLayout = "2006-01-02 15:04:05.000"
)

func (f *FixedFormatWriter) Write(p []byte) (int, error) {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		return f.w.Write(p)
	}

	ts := formatTimestamp(popString(fields, "time"))
	lvl, ok := levelAbbrev[popString(fields, "level")]
	if !ok {
		lvl = "???"
	}
	comp := popString(fields, "component")
	if len(comp) > componentWidth {
		comp = comp[:componentWidth]
	}
	msg := popString(fields, "message")
	delete(fields, "caller")

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%-*s] %s", ts, lvl, componentWidth, comp, msg)
	if extra := formatExtra(fields); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte('\n')

	// zerolog expects the input length back
	_, err := io.WriteString(f.w, b.String())
	return len(p), err
}

// popString removes key from fields and returns its value as a string.
func popString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// formatTimestamp renders an RFC3339 timestamp in local wall-clock form,
// dropping the zone. Unparseable input is padded or cut to column width.
func formatTimestamp(ts string) string {
	if ts == "" {
		return strings.Repeat(" ", len(timestampLayout))
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.Format(timestampLayout)
	}
	if len(ts) > len(timestampLayout) {
		return ts[:len(timestampLayout)]
	}
	return ts + strings.Repeat(" ", len(timestampLayout)-len(ts))
}

// formatExtra renders remaining fields as sorted key=value pairs.
func formatExtra(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := fmt.Sprintf("%v", fields[k])
		if strings.ContainsAny(s, " \t\n\"") {
			s = fmt.Sprintf("%q", s)
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, " ")
}
