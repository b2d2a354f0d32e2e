package auth

import (
	"strings"
	"testing"
)

func TestIsUserToken(t *testing.T) {
	cases := []struct {
		token string
		want  bool
	}{
		{"user.42.deadbeef", true},
		{"user.1.x", true},
		{"panel.9.deadbeef", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsUserToken(tc.token); got != tc.want {
			t.Errorf("IsUserToken(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestUIDFromToken(t *testing.T) {
	uid, ok := UIDFromToken("user.42.deadbeef")
	if !ok || uid != 42 {
		t.Fatalf("UIDFromToken = %d, %v; want 42, true", uid, ok)
	}
	if _, ok := UIDFromToken("panel.9.deadbeef"); ok {
		t.Fatal("expected no uid in a panel token")
	}
	if _, ok := UIDFromToken("user.abc.x"); ok {
		t.Fatal("expected no uid in a malformed token")
	}
}

func TestAllowedTopicsForUser(t *testing.T) {
	info := &TokenInfo{Active: true, Type: SubjectUser, App: "app1", User: 42}
	allowed := AllowedTopics(info)

	if len(allowed) != len(eventCategories) {
		t.Fatalf("expected %d entries, got %d", len(eventCategories), len(allowed))
	}
	for _, topic := range allowed {
		if !strings.HasSuffix(topic, ".app1.42") {
			t.Errorf("user entry %q is not fully qualified", topic)
		}
	}
}

func TestAllowedTopicsForPanel(t *testing.T) {
	info := &TokenInfo{Active: true, Type: SubjectPanel, Apps: []string{"app1", "app2"}}
	allowed := AllowedTopics(info)

	if len(allowed) != 2*len(eventCategories) {
		t.Fatalf("expected %d entries, got %d", 2*len(eventCategories), len(allowed))
	}
	for _, topic := range allowed {
		if !strings.HasSuffix(topic, ".") {
			t.Errorf("panel entry %q lacks the umbrella trailing dot", topic)
		}
	}
}

func TestCheckAccessUser(t *testing.T) {
	info := &TokenInfo{Active: true, Type: SubjectUser, App: "app1", User: 42}

	if !CheckAccess(info, []string{"instantmessage.app1.42", "conversation.app1.42"}) {
		t.Fatal("own scoped topics should be allowed")
	}
	if CheckAccess(info, []string{"instantmessage.app1.43"}) {
		t.Fatal("another user's topic should be denied")
	}
	if CheckAccess(info, []string{"instantmessage.app2.42"}) {
		t.Fatal("another app's topic should be denied")
	}
	// Membership is exact: a shorter prefix of an allowed entry is refused.
	if CheckAccess(info, []string{"instantmessage.app1"}) {
		t.Fatal("sub-prefix of an allowed topic should be denied")
	}
	// One unauthorized topic denies the whole request.
	if CheckAccess(info, []string{"instantmessage.app1.42", "instantmessage.app2.1"}) {
		t.Fatal("mixed request should be denied")
	}
}

func TestCheckAccessPanel(t *testing.T) {
	info := &TokenInfo{Active: true, Type: SubjectPanel, Apps: []string{"app1"}}

	if !CheckAccess(info, []string{"instantmessage.app1.", "conversation.app1."}) {
		t.Fatal("administered app umbrellas should be allowed")
	}
	if CheckAccess(info, []string{"instantmessage.app2."}) {
		t.Fatal("another app's umbrella should be denied")
	}
	// Panels request the umbrella form verbatim; a fully-qualified user
	// topic is not in the panel's allowed set.
	if CheckAccess(info, []string{"instantmessage.app1.42"}) {
		t.Fatal("fully-qualified topic should be denied for a panel")
	}
}
