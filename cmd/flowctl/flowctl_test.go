package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func writeFlow(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Flow is valid")
	assert.Contains(t, out, "entry START")

	path := writeFlow(t, `
entry: START
states:
  START:
    message: hi
    options:
      "1": { target: MISSING }
`)
	_, err = execute(t, "", "validate", "--flow", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, flow.ErrInvalidFlow)
	assert.Contains(t, err.Error(), "MISSING")
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "", "graph")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph flow {"))

	out, err = execute(t, "", "graph", "--format", "json")
	require.NoError(t, err)
	var graph flow.Graph
	require.NoError(t, json.Unmarshal([]byte(out), &graph))
	assert.Equal(t, "START", graph.Entry)
	assert.NotEmpty(t, graph.Edges)

	_, err = execute(t, "", "graph", "--format", "svg")
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	out, err := execute(t, "hi\n1\n1\n#menu\n", "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Welcome to our service")
	assert.Contains(t, out, "(START -> START, greeting)")
	assert.Contains(t, out, "(START -> PRODUCTS_MENU, transition)")
	assert.Contains(t, out, "[image] https://placehold.co/600x400/png?text=Starter+plan \"Starter plan\"")
	assert.Contains(t, out, "(PRODUCTS_MENU -> PRODUCT_STARTER, transition)")
	assert.Contains(t, out, "(PRODUCT_STARTER -> START, reset)")
}
