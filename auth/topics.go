package auth

import (
	"slices"
	"strconv"
)

// eventCategories are the topic families the platform publishes. Every
// allowed-topic entry is one of these scoped to an app (and, for user
// subjects, a user id).
var eventCategories = []string{
	"instantmessage",
	"user_status_change",
	"instantmessage_read",
	"campaign_hit",
	"conversation",
	"conversation_reply",
	"conversation_read",
}

// AllowedTopics computes the topic filters a subject may subscribe to.
//
// User subjects get fully-qualified entries ("<cat>.<app>.<uid>"). Panel
// subjects get umbrella entries with a trailing dot ("<cat>.<app>.") per
// administered app; the trailing dot is what makes a panel subscription
// prefix-wide at match time while the access check below stays an exact
// string comparison for both subject kinds.
func AllowedTopics(info *TokenInfo) []string {
	var allowed []string
	switch info.Type {
	case SubjectUser:
		scope := info.App + "." + strconv.FormatInt(info.User, 10)
		for _, cat := range eventCategories {
			allowed = append(allowed, cat+"."+scope)
		}
	case SubjectPanel:
		for _, app := range info.Apps {
			for _, cat := range eventCategories {
				allowed = append(allowed, cat+"."+app+".")
			}
		}
	}
	return allowed
}

// CheckAccess reports whether every requested topic appears verbatim in the
// subject's allowed set. Membership is exact: a requested filter that is
// merely a sub-prefix of an allowed entry is rejected, and one unauthorized
// topic denies the whole request.
func CheckAccess(info *TokenInfo, requested []string) bool {
	allowed := AllowedTopics(info)
	for _, topic := range requested {
		if !slices.Contains(allowed, topic) {
			return false
		}
	}
	return true
}
