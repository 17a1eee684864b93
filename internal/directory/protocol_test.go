package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "lookup a", want: Command{Name: CmdLookup, Key: "a"}},
		{line: "put a 1", want: Command{Name: CmdPut, Key: "a", Value: "1"}},
		{line: "remove a", want: Command{Name: CmdRemove, Key: "a"}},
		{line: "shutdown", want: Command{Name: CmdShutdown}},
		{line: "  put   a   1  ", want: Command{Name: CmdPut, Key: "a", Value: "1"}},
		{line: "", wantErr: true},
		{line: "lookup", wantErr: true},
		{line: "lookup a b", wantErr: true},
		{line: "put a", wantErr: true},
		{line: "put a 1 2", wantErr: true},
		{line: "shutdown now", wantErr: true},
		{line: "LOOKUP a", wantErr: true},
		{line: "frobnicate", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommand_String(t *testing.T) {
	for _, line := range []string{"lookup a", "put a 1", "remove a", "shutdown"} {
		cmd, err := ParseCommand(line)
		require.NoError(t, err)
		assert.Equal(t, line, cmd.String())
	}
	assert.Equal(t, "ok 10.0.0.1:7001", LookupReply("10.0.0.1:7001"))
}
