// Package anidb implements the UDP client for the AniDB-style metadata
// service: command encoding, response decoding, record parsing and the
// rate-limited session.
package anidb

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Command is an outgoing protocol command: a name plus ordered key=value
// arguments. Setting a key twice keeps the later value in the position the
// key was first set.
type Command struct {
	name string
	args []commandArg
}

type commandArg struct {
	key   string
	value string // already escaped
}

// NewCommand creates a command with the given name
func NewCommand(name string) *Command {
	return &Command{name: name}
}

// Name returns the command name
func (c *Command) Name() string {
	return c.name
}

// Arg sets an argument. Strings are escaped for the wire, byte slices are
// rendered as lower-case hex, booleans as 1/0, integers as decimal.
func (c *Command) Arg(key string, value interface{}) *Command {
	escaped := escapeValue(value)

	for i := range c.args {
		if c.args[i].key == key {
			c.args[i].value = escaped
			return c
		}
	}

	c.args = append(c.args, commandArg{key: key, value: escaped})
	return c
}

// String renders the wire form: NAME key1=val1&key2=val2\n
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	b.WriteByte(' ')

	for i, arg := range c.args {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(arg.key)
		b.WriteByte('=')
		b.WriteString(arg.value)
	}

	b.WriteByte('\n')
	return b.String()
}

func escapeValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return escapeString(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case []byte:
		return hex.EncodeToString(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return escapeString(fmt.Sprint(v))
	}
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	return strings.ReplaceAll(s, "\n", "<br />")
}
