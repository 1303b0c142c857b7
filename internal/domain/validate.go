package domain

import (
	"regexp"
	"strings"
)

var (
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

	// Relation labels are interpolated into Cypher patterns; only identifier
	// shaped labels are allowed through.
	relationLabelPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)
)

func ValidUserID(userID string) bool {
	return userIDPattern.MatchString(userID)
}

func ValidRelationLabel(label string) bool {
	return relationLabelPattern.MatchString(label)
}

func ValidNodeName(name string) bool {
	if name == "" || len(name) > MaxNodeNameLen {
		return false
	}
	return strings.TrimSpace(name) != ""
}
