package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/session"
)

const scenarioFlow = `
entry: START
end: END
reset_token: "#menu"
ping_token: "!ping"
states:
  START:
    message: "menu: 1 for A, 2 for B, 3 for menu B, 9 to finish"
    fallback: "not understood. "
    options:
      "1": { target: A }
      "2": { target: B }
      "3": { target: SUB }
      "9": { target: END }
  SUB:
    message: "sub menu: 1 for B"
    fallback: "pick from the sub menu. "
    options:
      "1": { target: B }
  A:
    final: true
    message: "this is A"
    fallback: "send #MENU"
    media: { kind: image, source: "https://example.com/a.png", caption: "A picture" }
  B:
    final: true
    message: "this is B"
    fallback: "send #MENU for B"
  END:
    message: "bye"
`

func newEngine(t *testing.T) *Engine {
	t.Helper()
	def, err := flow.Parse([]byte(scenarioFlow))
	require.NoError(t, err)
	store, err := session.NewMemoryStore(0)
	require.NoError(t, err)
	return New(def, session.NewManager(store, def.EntryID()))
}

func stateOf(t *testing.T, e *Engine, chatID string) string {
	t.Helper()
	id, _, err := e.Sessions().State(context.Background(), chatID)
	require.NoError(t, err)
	return id
}

func TestStep_Scenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	chat := "5511999999999@s.whatsapp.net"

	r, err := e.Step(ctx, chat, "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeGreeting, r.Outcome)
	assert.Equal(t, []Payload{{Kind: PayloadText, Text: "menu: 1 for A, 2 for B, 3 for menu B, 9 to finish"}}, r.Payloads)
	assert.Equal(t, "START", stateOf(t, e, chat))

	r, err = e.Step(ctx, chat, "1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransition, r.Outcome)
	require.Len(t, r.Payloads, 2)
	assert.Equal(t, PayloadMedia, r.Payloads[0].Kind)
	assert.Equal(t, "A picture", r.Payloads[0].Text)
	assert.Equal(t, "https://example.com/a.png", r.Payloads[0].Media.Source)
	assert.Equal(t, Payload{Kind: PayloadText, Text: "this is A"}, r.Payloads[1])
	assert.Equal(t, "A", stateOf(t, e, chat))
	assert.True(t, r.Transitioned())

	r, err = e.Step(ctx, chat, "anything")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinal, r.Outcome)
	assert.Equal(t, []Payload{{Kind: PayloadText, Text: "send #MENU"}}, r.Payloads)
	assert.Equal(t, "A", stateOf(t, e, chat))
	assert.False(t, r.Transitioned())

	r, err = e.Step(ctx, chat, "#MENU")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReset, r.Outcome)
	assert.Equal(t, "menu: 1 for A, 2 for B, 3 for menu B, 9 to finish", r.Text())
	assert.Equal(t, "START", stateOf(t, e, chat))
}

func TestStep_FirstMessageMatchingOptionTransitions(t *testing.T) {
	e := newEngine(t)

	r, err := e.Step(context.Background(), "fresh", " 2 ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransition, r.Outcome)
	assert.Equal(t, "this is B", r.Text())
	assert.Nil(t, r.Media())
	assert.Equal(t, "B", stateOf(t, e, "fresh"))
}

func TestStep_ResetIsIdempotentFromEveryState(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	def := e.Definition()

	for _, id := range def.StateIDs() {
		chat := "chat-" + id
		require.NoError(t, e.Sessions().SetState(ctx, chat, id))

		for i := 0; i < 2; i++ {
			r, err := e.Step(ctx, chat, "#Menu")
			require.NoError(t, err)
			assert.Equal(t, def.Entry().Message, r.Text(), "from %s attempt %d", id, i)
			assert.Equal(t, "START", stateOf(t, e, chat))
		}
	}
}

func TestStep_EmptyInputActsAsReset(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Sessions().SetState(ctx, "chat", "B"))

	r, err := e.Step(ctx, "chat", "   \n")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReset, r.Outcome)
	assert.Equal(t, "START", stateOf(t, e, "chat"))
}

func TestStep_EveryOptionTransitionsToItsTarget(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	def := e.Definition()

	for _, id := range def.StateIDs() {
		st, err := def.Get(id)
		require.NoError(t, err)
		for _, token := range st.OptionKeys() {
			chat := fmt.Sprintf("%s-%s", id, token)
			require.NoError(t, e.Sessions().SetState(ctx, chat, id))

			r, err := e.Step(ctx, chat, token)
			require.NoError(t, err)

			target, err := def.Get(st.Options[token].Target)
			require.NoError(t, err)
			assert.Equal(t, target.ID, stateOf(t, e, chat))
			assert.Equal(t, target.Message, r.Text())
			if target.Media != nil {
				require.NotNil(t, r.Media())
				assert.Equal(t, PayloadMedia, r.Payloads[0].Kind)
			} else {
				assert.Len(t, r.Payloads, 1)
			}
		}
	}
}

func TestStep_InvalidTokenInNonFinalState(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	for _, id := range []string{"START", "SUB"} {
		require.NoError(t, e.Sessions().SetState(ctx, "chat", id))
		st, err := e.Definition().Get(id)
		require.NoError(t, err)

		r, err := e.Step(ctx, "chat", "42")
		require.NoError(t, err)
		assert.Equal(t, OutcomeFallback, r.Outcome)
		assert.Equal(t, st.Fallback+st.Message, r.Text())
		assert.Equal(t, id, stateOf(t, e, "chat"))
	}
}

func TestStep_FinalStateAbsorbs(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Sessions().SetState(ctx, "chat", "B"))

	for _, input := range []string{"1", "2", "hello", "menu"} {
		r, err := e.Step(ctx, "chat", input)
		require.NoError(t, err)
		assert.Equal(t, "send #MENU for B", r.Text())
		assert.Equal(t, "B", stateOf(t, e, "chat"))
	}
}

func TestStep_EndStateBouncesToEntry(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	for _, input := range []string{"x", "1", "#MENU", "!ping", ""} {
		require.NoError(t, e.Sessions().SetState(ctx, "chat", "START"))
		r, err := e.Step(ctx, "chat", "9")
		require.NoError(t, err)
		assert.Equal(t, "bye", r.Text())
		assert.Equal(t, "END", stateOf(t, e, "chat"))

		r, err = e.Step(ctx, "chat", input)
		require.NoError(t, err)
		assert.Equal(t, e.Definition().Entry().Message, r.Text(), "input %q", input)
		assert.NotEqual(t, OutcomePing, r.Outcome, "input %q", input)
		assert.Equal(t, "START", stateOf(t, e, "chat"))
	}
}

func TestStep_DefaultFlowEndIgnoresPing(t *testing.T) {
	def, err := flow.Default()
	require.NoError(t, err)
	store, err := session.NewMemoryStore(0)
	require.NoError(t, err)
	e := New(def, session.NewManager(store, def.EntryID()))
	ctx := context.Background()

	require.NoError(t, e.Sessions().SetState(ctx, "chat", def.EntryID()))
	_, err = e.Step(ctx, "chat", "4")
	require.NoError(t, err)
	require.Equal(t, def.EndID(), stateOf(t, e, "chat"))

	r, err := e.Step(ctx, "chat", def.PingToken())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEndBounce, r.Outcome)
	assert.Equal(t, def.Entry().Message, r.Text())
	assert.Equal(t, def.EntryID(), stateOf(t, e, "chat"))
}

func TestStep_PingLeavesStateUntouched(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Sessions().SetState(ctx, "chat", "SUB"))

	r, err := e.Step(ctx, "chat", "!PING")
	require.NoError(t, err)
	assert.Equal(t, OutcomePing, r.Outcome)
	assert.Equal(t, "pong", r.Text())
	assert.Equal(t, "SUB", stateOf(t, e, "chat"))
}

func TestStep_UnknownStateRecovers(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Sessions().SetState(ctx, "chat", "REMOVED_IN_NEW_FLOW"))

	r, err := e.Step(ctx, "chat", "1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfigError, r.Outcome)
	assert.Equal(t, flow.DefaultConfigErrorMessage, r.Text())
	assert.Equal(t, "START", stateOf(t, e, "chat"))
}

type failingStore struct {
	session.Store
}

func (failingStore) Load(context.Context, string) (string, error) {
	return "", errors.New("store down")
}

func TestStep_StoreErrorsPropagate(t *testing.T) {
	def, err := flow.Parse([]byte(scenarioFlow))
	require.NoError(t, err)
	e := New(def, session.NewManager(failingStore{}, def.EntryID()))

	_, err = e.Step(context.Background(), "chat", "1")
	assert.ErrorContains(t, err, "store down")
}

// slowStore widens the window between the read and the write of a step so
// that unserialized steps of one chat would read the same state.
type slowStore struct {
	session.Store
}

func (s slowStore) Load(ctx context.Context, chatID string) (string, error) {
	id, err := s.Store.Load(ctx, chatID)
	time.Sleep(time.Millisecond)
	return id, err
}

func TestStep_ConcurrentMessagesSameChat(t *testing.T) {
	def, err := flow.Parse([]byte(scenarioFlow))
	require.NoError(t, err)
	mem, err := session.NewMemoryStore(0)
	require.NoError(t, err)
	e := New(def, session.NewManager(slowStore{Store: mem}, def.EntryID()))
	ctx := context.Background()
	require.NoError(t, e.Sessions().SetState(ctx, "chat", "START"))

	// START -3-> SUB -1-> B. Exactly one "3" can move START to SUB and exactly
	// one "1" can move SUB to B, so only serialized steps produce two transitions.
	const n = 10
	var wg sync.WaitGroup
	replies := make(chan Reply, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		for _, input := range []string{"3", "1"} {
			go func(input string) {
				defer wg.Done()
				r, err := e.Step(ctx, "chat", input)
				if assert.NoError(t, err) {
					replies <- r
				}
			}(input)
		}
	}
	wg.Wait()
	close(replies)

	moves := map[string]int{}
	for r := range replies {
		if r.Outcome == OutcomeTransition {
			moves[r.From+"->"+r.StateID]++
		}
	}
	assert.Equal(t, 1, moves["START->SUB"]+moves["START->A"], "only one step may leave START")
	assert.LessOrEqual(t, moves["SUB->B"], 1)
	for move := range moves {
		assert.Contains(t, []string{"START->SUB", "SUB->B", "START->A"}, move)
	}
	if moves["SUB->B"] == 1 {
		assert.Equal(t, 1, moves["START->SUB"])
	}
}
