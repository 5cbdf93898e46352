package flow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	def, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "START", def.EntryID())
	assert.Equal(t, "END", def.EndID())
	assert.Equal(t, "#MENU", def.ResetToken())
	assert.Equal(t, "!PING", def.PingToken())
	assert.Equal(t, "pong", def.PingReply())

	for _, id := range def.StateIDs() {
		st, err := def.Get(id)
		require.NoError(t, err)
		for _, token := range st.OptionKeys() {
			_, err := def.Get(st.Options[token].Target)
			assert.NoError(t, err, "state %s option %s", id, token)
		}
	}
}

func TestParse_NormalizesOptionTokens(t *testing.T) {
	def, err := Parse([]byte(`
entry: START
states:
  START:
    message: menu
    options:
      " a ": { target: A }
  A:
    final: true
    message: a
    fallback: only #menu
`))
	require.NoError(t, err)

	start := def.Entry()
	tr, ok := start.Option("A")
	require.True(t, ok)
	assert.Equal(t, "A", tr.Target)
	_, ok = start.Option(" a ")
	assert.False(t, ok)
	assert.Equal(t, DefaultConfigErrorMessage, def.ConfigErrorMessage())
	assert.Equal(t, "", def.PingToken())
}

func TestParse_DanglingTarget(t *testing.T) {
	_, err := Parse([]byte(`
entry: START
states:
  START:
    message: menu
    options:
      "1": { target: NOWHERE }
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFlow))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, `state START: option "1" targets undefined state NOWHERE`)
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
entry: HOME
end: BYE
reset_token: "#menu"
ping_token: "#MENU"
states:
  START:
    message: menu
    options:
      "x": { target: F }
      "X": { target: F }
      "#menu": { target: F }
  F:
    final: true
    message: f
    options:
      "1": { target: START }
    media: { kind: hologram, source: "" }
`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	joined := verr.Error()
	assert.Contains(t, joined, "entry state HOME is not defined")
	assert.Contains(t, joined, "end state BYE is not defined")
	assert.Contains(t, joined, "equals the reset token")
	assert.Contains(t, joined, "collides with another option")
	assert.Contains(t, joined, "shadows a command token")
	assert.Contains(t, joined, "state F is final but declares options")
	assert.Contains(t, joined, "state F is final and needs a fallback message")
	assert.Contains(t, joined, `unknown media kind "hologram"`)
	assert.Contains(t, joined, "media source is empty")
}

func TestParse_EndStateWithOptions(t *testing.T) {
	_, err := Parse([]byte(`
entry: START
end: END
states:
  START:
    message: menu
    options:
      "1": { target: END }
  END:
    message: bye
    options:
      "1": { target: START }
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end state END must not declare options")
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
entry: START
states:
  START:
    mesage: typo
`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
states:
  START:
    message: hi
`), 0o600))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultEntryID, def.EntryID())
	assert.Equal(t, 1, def.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	def, err := Default()
	require.NoError(t, err)

	_, err = def.Get("NOPE")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "#MENU", Normalize("  #menu\n"))
	assert.Equal(t, "", Normalize(" \t "))
}

func TestGraph(t *testing.T) {
	def, err := Parse([]byte(`
entry: START
end: END
states:
  START:
    message: menu
    options:
      "1": { target: A, label: Products }
      "2": { target: END }
  A:
    message: a
    final: true
    media: { kind: image, source: "https://example.com/a.png" }
  END:
    message: bye
`))
	require.NoError(t, err)

	g := def.Graph()
	assert.Equal(t, "START", g.Entry)
	assert.Equal(t, "END", g.End)
	require.Len(t, g.States, 3)
	assert.Equal(t, []Edge{
		{From: "START", Token: "1", Target: "A", Label: "Products"},
		{From: "START", Token: "2", Target: "END"},
	}, g.Edges)

	dot := g.DOT()
	assert.Contains(t, dot, `"START" [shape=circle, style=bold];`)
	assert.Contains(t, dot, `"A" [shape=doublecircle, xlabel="image"];`)
	assert.Contains(t, dot, `"END" [shape=box];`)
	assert.Contains(t, dot, `"START" -> "A" [label="1: Products"];`)
	assert.Contains(t, dot, `"START" -> "END" [label="2"];`)
}
