// Package directory implements the directory service: a line-oriented TCP
// key/value store that resolves port URIs to the locations of the processes
// that published them, together with its client.
package directory

import (
	"fmt"
	"strings"
	"unicode"
)

// Commands understood by the directory service.
const (
	CmdLookup   = "lookup"
	CmdPut      = "put"
	CmdRemove   = "remove"
	CmdShutdown = "shutdown"
)

// Replies written by the directory service, one per line.
const (
	ReplyOK             = "ok"
	ReplyNotFound       = "nok"
	ReplyBound          = "nok bound!"
	ReplyNotBound       = "nok not_bound!"
	ReplyUnknownCommand = "nok unknown_command!"
	// ReplyStoreFailure is written when the backing store fails. The memory
	// store never does.
	ReplyStoreFailure = "nok store_failure!"
)

// MaxLineLength bounds a request line, terminator included. A longer line is
// answered with ReplyUnknownCommand and the connection is closed.
const MaxLineLength = 4096

// Command is one parsed request line.
type Command struct {
	Name  string
	Key   string
	Value string
}

// arity is the number of space-separated fields each command takes,
// including the command name.
var arity = map[string]int{
	CmdLookup:   2,
	CmdPut:      3,
	CmdRemove:   2,
	CmdShutdown: 1,
}

// ParseCommand parses a request line. Unknown commands and commands with the
// wrong number of fields are rejected alike.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	want, ok := arity[fields[0]]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	if len(fields) != want {
		return Command{}, fmt.Errorf("%s takes %d arguments, got %d", fields[0], want-1, len(fields)-1)
	}

	cmd := Command{Name: fields[0]}
	if want > 1 {
		cmd.Key = fields[1]
	}
	if want > 2 {
		cmd.Value = fields[2]
	}
	return cmd, nil
}

// String formats the command as a request line without the terminator.
func (c Command) String() string {
	switch c.Name {
	case CmdPut:
		return c.Name + " " + c.Key + " " + c.Value
	case CmdLookup, CmdRemove:
		return c.Name + " " + c.Key
	default:
		return c.Name
	}
}

// LookupReply formats a successful lookup.
func LookupReply(value string) string {
	return ReplyOK + " " + value
}

// validToken reports whether s can travel as a single protocol field.
func validToken(s string) bool {
	return s != "" && strings.IndexFunc(s, unicode.IsSpace) < 0
}
