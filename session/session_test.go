package session

import (
	"fmt"
	"testing"

	"github.com/aidconnect/hub/core/protocol"
)

func TestStoreCreatesFreshSession(t *testing.T) {
	st := NewStore(DefaultConfig())

	s := st.GetOrCreate("")
	if s.ID() == "" {
		t.Fatal("expected a generated session id")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestStoreReturnsSameSessionForKnownID(t *testing.T) {
	st := NewStore(DefaultConfig())

	a := st.GetOrCreate("")
	b := st.GetOrCreate(a.ID())
	if a != b {
		t.Error("expected the same session for a known id")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestStoreUnknownIDGetsFreshIdentifier(t *testing.T) {
	st := NewStore(DefaultConfig())

	s := st.GetOrCreate("never-seen-before")
	if s.ID() == "never-seen-before" {
		t.Error("unknown id must not be adopted as-is")
	}
	if s.ID() == "" {
		t.Fatal("expected a generated session id")
	}
	if again := st.GetOrCreate(s.ID()); again != s {
		t.Error("expected the generated id to resolve to the same session")
	}
}

func TestStoreDistinctIDsForNewSessions(t *testing.T) {
	st := NewStore(DefaultConfig())

	a := st.GetOrCreate("")
	b := st.GetOrCreate("")
	if a.ID() == b.ID() {
		t.Errorf("two fresh sessions share id %q", a.ID())
	}
}

func TestAppendAndMessagesCopy(t *testing.T) {
	st := NewStore(DefaultConfig())
	s := st.GetOrCreate("")

	s.Append(protocol.NewMessage(protocol.RoleUser, "hello"))
	got := s.Messages()
	if len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("Messages() = %+v", got)
	}

	// mutating the returned slice must not affect the session
	got[0].Content = "mutated"
	if s.Messages()[0].Content != "hello" {
		t.Error("Messages() returned a live reference to internal history")
	}
}

func TestTrimPreservesSystemMessage(t *testing.T) {
	st := NewStore(Config{MaxHistory: 500, TrimTo: 200})
	s := st.GetOrCreate("")

	s.Append(protocol.NewMessage(protocol.RoleSystem, "operating instructions"))
	for i := 0; i < 600; i++ {
		s.Append(protocol.NewMessage(protocol.RoleUser, fmt.Sprintf("msg-%d", i)))
	}

	msgs := s.Messages()
	if len(msgs) > 500 {
		t.Fatalf("history length = %d, want <= 500", len(msgs))
	}
	// the trim fired once at 501 entries, cutting to 200; the remaining
	// 100 appends grow it back to 300
	if len(msgs) != 300 {
		t.Errorf("history length = %d, want 300", len(msgs))
	}
	if msgs[0].Role != protocol.RoleSystem {
		t.Errorf("head role = %q, want system", msgs[0].Role)
	}
	if msgs[0].Content != "operating instructions" {
		t.Errorf("head content = %q", msgs[0].Content)
	}
	// the rest is the newest tail in original order
	if got, want := msgs[len(msgs)-1].Content, "msg-599"; got != want {
		t.Errorf("tail = %q, want %q", got, want)
	}
	if got, want := msgs[1].Content, "msg-301"; got != want {
		t.Errorf("first kept = %q, want %q", got, want)
	}
}

func TestTrimWithoutSystemMessage(t *testing.T) {
	st := NewStore(Config{MaxHistory: 10, TrimTo: 4})
	s := st.GetOrCreate("")

	for i := 0; i < 11; i++ {
		s.Append(protocol.NewMessage(protocol.RoleUser, fmt.Sprintf("m%d", i)))
	}

	msgs := s.Messages()
	if len(msgs) != 4 {
		t.Fatalf("trimmed length = %d, want 4", len(msgs))
	}
	for i, want := range []string{"m7", "m8", "m9", "m10"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}
}

func TestTrimWithSmallMaxHistoryAndDefaultedTrim(t *testing.T) {
	// trim_to omitted: the defaulted trim target must be clamped to the
	// small cap instead of overshooting it
	st := NewStore(Config{MaxHistory: 50})
	s := st.GetOrCreate("")

	for i := 0; i < 120; i++ {
		s.Append(protocol.NewMessage(protocol.RoleUser, fmt.Sprintf("m%d", i)))
	}

	if s.Len() > 50 {
		t.Fatalf("Len() = %d, want <= 50", s.Len())
	}
	msgs := s.Messages()
	if got, want := msgs[len(msgs)-1].Content, "m119"; got != want {
		t.Errorf("tail = %q, want %q", got, want)
	}
}

func TestTrimWithSystemMessageAtTinyBound(t *testing.T) {
	st := NewStore(Config{MaxHistory: 5})
	s := st.GetOrCreate("")

	s.Append(protocol.NewMessage(protocol.RoleSystem, "rules"))
	for i := 0; i < 20; i++ {
		s.Append(protocol.NewMessage(protocol.RoleUser, fmt.Sprintf("m%d", i)))
	}

	msgs := s.Messages()
	if len(msgs) > 5 {
		t.Fatalf("history length = %d, want <= 5", len(msgs))
	}
	if msgs[0].Content != "rules" {
		t.Errorf("head = %q, want the system message", msgs[0].Content)
	}
	if got, want := msgs[len(msgs)-1].Content, "m19"; got != want {
		t.Errorf("tail = %q, want %q", got, want)
	}
}

func TestNoTrimUnderBound(t *testing.T) {
	st := NewStore(Config{MaxHistory: 10, TrimTo: 4})
	s := st.GetOrCreate("")

	for i := 0; i < 10; i++ {
		s.Append(protocol.NewMessage(protocol.RoleUser, "x"))
	}
	if s.Len() != 10 {
		t.Errorf("Len() = %d, want 10 (no trim at the bound)", s.Len())
	}
}
