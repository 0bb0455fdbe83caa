package auditlog

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// lineRe matches "[ts] [LEVEL] message {json}". The message is lazy and the
// object greedy, so the context starts at the first " {" whose remainder
// ends in "}". A message containing " {...}" text therefore splits early and
// the line usually fails to decode; such lines are dropped.
var lineRe = regexp.MustCompile(`^\[(.*?)\] \[(\w+)\] (.*?) (\{.*\})$`)

// ParseLine parses a single log line. The boolean is false for lines that
// do not follow the grammar or whose context is not a JSON object.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	ctx, ok := decodeContext(m[4])
	if !ok {
		return Event{}, false
	}
	return Event{
		Timestamp: m[1],
		Level:     Level(strings.ToUpper(m[2])),
		Message:   m[3],
		Context:   ctx,
	}, true
}

func decodeContext(raw string) (Context, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var ctx Context
	if err := dec.Decode(&ctx); err != nil || ctx == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return ctx, true
}

// FormatLine renders an event in the on-disk grammar. Newlines in the
// message are flattened so one event stays on one line.
func FormatLine(ts string, level Level, message string, ctx Context) (string, error) {
	if ctx == nil {
		ctx = Context{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ctx); err != nil {
		return "", err
	}
	payload := strings.TrimRight(buf.String(), "\n")
	message = strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(message))
	return "[" + ts + "] [" + string(level) + "] " + message + " " + payload + "\n", nil
}
