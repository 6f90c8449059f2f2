package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

const timeLayout = "2006-01-02 15:04:05"

type encoder func(buf *bytes.Buffer, e Entry, timestamp bool)

func encoderFor(f Format) encoder {
	switch f {
	case FormatJSON:
		return encodeJSON
	case FormatColor:
		return encodeColor
	default:
		return encodeText
	}
}

// palette wraps each part of a text line; the plain palette leaves it bare.
type palette struct {
	time, component, caller, key, value, reset string
	level                                      func(Level) string
}

var (
	plain = palette{level: func(Level) string { return "" }}
	ansi  = palette{
		time: "\033[90m", component: "\033[36m", caller: "\033[90m",
		key: "\033[33m", value: "\033[32m", reset: "\033[0m",
		level: levelColor,
	}
)

func encodeText(buf *bytes.Buffer, e Entry, timestamp bool) { writeLine(buf, e, timestamp, plain) }

func encodeColor(buf *bytes.Buffer, e Entry, timestamp bool) { writeLine(buf, e, timestamp, ansi) }

// writeLine renders "TIME [LEVEL] [component] message (caller) k=v ...".
func writeLine(buf *bytes.Buffer, e Entry, timestamp bool, p palette) {
	if timestamp {
		fmt.Fprintf(buf, "%s%s%s ", p.time, e.Timestamp.Format(timeLayout), p.reset)
	}
	fmt.Fprintf(buf, "%s[%s]%s %s[%s]%s %s", p.level(e.Level), e.Level, p.reset, p.component, e.Component, p.reset, e.Message)
	if e.Caller != "" {
		fmt.Fprintf(buf, " %s(%s)%s", p.caller, e.Caller, p.reset)
	}
	for _, k := range sortedKeys(e.Fields) {
		fmt.Fprintf(buf, " %s%s%s=%s%v%s", p.key, k, p.reset, p.value, e.Fields[k], p.reset)
	}
}

func encodeJSON(buf *bytes.Buffer, e Entry, _ bool) {
	data, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(buf, `{"level":%q,"component":%q,"message":%q}`, e.Level, e.Component, e.Message)
		return
	}
	buf.Write(data)
}

// sortedKeys keeps field order stable between runs.
func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func levelColor(level Level) string {
	switch level {
	case TRACE:
		return "\033[37m"
	case DEBUG:
		return "\033[94m"
	case INFO:
		return "\033[92m"
	case WARN:
		return "\033[93m"
	case ERROR:
		return "\033[91m"
	}
	return "\033[0m"
}
