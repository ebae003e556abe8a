package session

import (
	"testing"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/message"
)

func TestNewSession(t *testing.T) {
	sess := New("test-session")

	if sess.ID() != "test-session" {
		t.Errorf("expected ID test-session, got %s", sess.ID())
	}
	if sess.State != StateActive {
		t.Errorf("expected state active, got %s", sess.State)
	}
	if sess.Stage != StageIntake {
		t.Errorf("expected stage intake, got %s", sess.Stage)
	}
	if len(sess.Turns) != 0 {
		t.Errorf("expected empty history, got %d turns", len(sess.Turns))
	}
}

func TestSessionAppend(t *testing.T) {
	sess := New("test-session")

	sess.Append(message.NewMessage(message.RoleUser, "hello"))
	sess.Append(message.NewMessage(message.RoleAssistant, "hi"))

	if len(sess.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(sess.Turns))
	}
	if sess.Turns[0].Role != message.RoleUser {
		t.Errorf("expected first turn role user, got %s", sess.Turns[0].Role)
	}
	if sess.Turns[1].Content != "hi" {
		t.Errorf("expected second turn content hi, got %s", sess.Turns[1].Content)
	}
}

func TestSessionBeginTurn(t *testing.T) {
	sess := New("test-session")
	sess.PendingURLs = []string{"https://example.com/a.jpg"}
	sess.Analyses = []*analysis.ImageAnalysis{{URL: "https://example.com/a.jpg", OK: true}}
	sess.SetStage(StageSynthesizing)

	sess.BeginTurn()

	if len(sess.PendingURLs) != 0 {
		t.Errorf("expected pending URLs cleared, got %v", sess.PendingURLs)
	}
	if len(sess.Analyses) != 0 {
		t.Errorf("expected analyses cleared, got %d", len(sess.Analyses))
	}
	if sess.Stage != StageIntake {
		t.Errorf("expected stage reset to intake, got %s", sess.Stage)
	}
}

func TestSnapshotRestore(t *testing.T) {
	sess := New("test-session")
	sess.Append(message.NewMessage(message.RoleUser, "first"))

	snap := sess.Snapshot()

	sess.Append(message.NewMessage(message.RoleAssistant, "second"))
	sess.PendingURLs = []string{"https://example.com/a.jpg"}
	sess.SetStage(StageAnalyzing)

	sess.Restore(snap)

	if len(sess.Turns) != 1 {
		t.Fatalf("expected 1 turn after restore, got %d", len(sess.Turns))
	}
	if sess.Turns[0].Content != "first" {
		t.Errorf("expected restored turn content first, got %s", sess.Turns[0].Content)
	}
	if len(sess.PendingURLs) != 0 {
		t.Errorf("expected pending URLs cleared after restore, got %v", sess.PendingURLs)
	}
	if sess.Stage != StageIntake {
		t.Errorf("expected stage intake after restore, got %s", sess.Stage)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	sess := New("test-session")
	sess.Append(message.NewMessage(message.RoleUser, "original"))

	snap := sess.Snapshot()
	snap.Turns[0].Content = "mutated"

	if sess.Turns[0].Content != "original" {
		t.Errorf("snapshot mutation leaked into session: %s", sess.Turns[0].Content)
	}
}

func TestFromRecord(t *testing.T) {
	sess := New("test-session")
	sess.Append(message.NewMessage(message.RoleUser, "hello"))
	sess.Analyses = []*analysis.ImageAnalysis{{URL: "https://example.com/a.jpg", OK: true, Description: "a beach"}}

	restored := FromRecord(sess.Snapshot())

	if restored.ID() != "test-session" {
		t.Errorf("expected ID test-session, got %s", restored.ID())
	}
	if len(restored.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(restored.Turns))
	}
	if len(restored.Analyses) != 1 || restored.Analyses[0].Description != "a beach" {
		t.Errorf("analyses not restored: %+v", restored.Analyses)
	}
}
