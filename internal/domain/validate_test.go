package domain

import (
	"strings"
	"testing"
)

func TestValidUserID(t *testing.T) {
	valid := []string{"alice", "user-123", "A_b-C", "0", strings.Repeat("x", 128)}
	for _, id := range valid {
		if !ValidUserID(id) {
			t.Errorf("ValidUserID(%q) = false, want true", id)
		}
	}

	invalid := []string{"", "has space", "semi;colon", "näme", "a/b", strings.Repeat("x", 129)}
	for _, id := range invalid {
		if ValidUserID(id) {
			t.Errorf("ValidUserID(%q) = true, want false", id)
		}
	}
}

func TestValidRelationLabel(t *testing.T) {
	valid := []string{"KNOWS", "FEELS", "STRUGGLES_WITH", "likes", "R2"}
	for _, label := range valid {
		if !ValidRelationLabel(label) {
			t.Errorf("ValidRelationLabel(%q) = false, want true", label)
		}
	}

	invalid := []string{"", "2FAST", "_LEAD", "HAS-DASH", "DROP TABLE", "A]->(m) DETACH DELETE m //", strings.Repeat("A", 65)}
	for _, label := range invalid {
		if ValidRelationLabel(label) {
			t.Errorf("ValidRelationLabel(%q) = true, want false", label)
		}
	}
}

func TestValidNodeName(t *testing.T) {
	if !ValidNodeName("rock climbing") {
		t.Error("ValidNodeName rejected a plain name")
	}
	if ValidNodeName("") {
		t.Error("ValidNodeName accepted empty")
	}
	if ValidNodeName("   ") {
		t.Error("ValidNodeName accepted whitespace")
	}
	if ValidNodeName(strings.Repeat("n", MaxNodeNameLen+1)) {
		t.Error("ValidNodeName accepted over-length name")
	}
	if !ValidNodeName(strings.Repeat("n", MaxNodeNameLen)) {
		t.Error("ValidNodeName rejected max-length name")
	}
}
