package clientquery

import (
	"sort"
	"strings"
)

// ========================= wire codec =========================

// ClientQuery escapes whitespace and separator characters inside parameter
// values. The table mirrors the official server query escaping rules.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`/`, `\/`,
	` `, `\s`,
	`|`, `\p`,
	"\a", `\a`,
	"\b", `\b`,
	"\f", `\f`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\v", `\v`,
)

var unescaper = strings.NewReplacer(
	`\\`, `\`,
	`\/`, `/`,
	`\s`, ` `,
	`\p`, `|`,
	`\a`, "\a",
	`\b`, "\b",
	`\f`, "\f",
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\v`, "\v",
)

// Escape encodes a raw value for use inside a command line.
func Escape(s string) string { return escaper.Replace(s) }

// Unescape decodes a value taken from a response or notification line.
func Unescape(s string) string { return unescaper.Replace(s) }

// Arg is a single key=value command parameter. Flag-style parameters
// (e.g. -uid) are passed as a Key beginning with '-' and an empty Value.
type Arg struct {
	Key   string
	Value string
}

// KV builds a key=value Arg.
func KV(key, value string) Arg { return Arg{Key: key, Value: value} }

// Flag builds an option Arg like -uid.
func Flag(name string) Arg { return Arg{Key: "-" + name} }

// BuildCommand renders a command line: name, then key=value pairs with
// escaped values, then -flags. Argument order is preserved.
func BuildCommand(name string, args ...Arg) string {
	var b strings.Builder
	b.WriteString(name)
	for _, a := range args {
		b.WriteByte(' ')
		if strings.HasPrefix(a.Key, "-") {
			b.WriteString(a.Key)
			continue
		}
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(Escape(a.Value))
	}
	return b.String()
}

// ParseLine splits a response or notification body into its list entries
// (separated by '|') and each entry into an unescaped field map. Fields
// without '=' (bare tokens) map to the empty string.
func ParseLine(line string) []map[string]string {
	parts := strings.Split(strings.TrimSpace(line), "|")
	entries := make([]map[string]string, 0, len(parts))
	for _, part := range parts {
		fields := map[string]string{}
		for _, tok := range strings.Fields(part) {
			if k, v, ok := strings.Cut(tok, "="); ok {
				fields[Unescape(k)] = Unescape(v)
			} else {
				fields[Unescape(tok)] = ""
			}
		}
		entries = append(entries, fields)
	}
	return entries
}

// Result is the parsed payload of one executed command.
type Result struct {
	Entries []map[string]string
}

// First returns the first entry, or an empty map for bodiless responses.
func (r *Result) First() map[string]string {
	if r == nil || len(r.Entries) == 0 {
		return map[string]string{}
	}
	return r.Entries[0]
}

// Keys returns the sorted field names of the first entry. Used by tests and
// debug logging only.
func (r *Result) Keys() []string {
	first := r.First()
	keys := make([]string, 0, len(first))
	for k := range first {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NotificationType extracts the leading "notify..." token of a raw event
// line. Returns "" if the line is not a notification.
func NotificationType(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "notify") {
		return ""
	}
	if i := strings.IndexByte(line, ' '); i > 0 {
		return line[:i]
	}
	return line
}

// SplitBatch splits a raw payload that may carry several concatenated
// notifications into individual lines. The transport occasionally delivers
// more than one notification in a single read.
func SplitBatch(raw string) []string {
	var items []string
	for _, l := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\r' }) {
		l = strings.TrimSpace(l)
		if l != "" {
			items = append(items, l)
		}
	}
	return items
}
