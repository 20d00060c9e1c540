package commands

import (
	"strings"
)

// parseChannelMention accepts <#123> or a bare numeric ID.
func parseChannelMention(s string) (string, bool) {
	if strings.HasPrefix(s, "<#") && strings.HasSuffix(s, ">") {
		s = s[2 : len(s)-1]
	}
	return s, isNumeric(s)
}

// parseUserMention accepts <@123>, <@!123> or a bare numeric ID.
func parseUserMention(s string) (string, bool) {
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(s[2:len(s)-1], "!")
	}
	return s, isNumeric(s)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func channelMention(id string) string {
	return "<#" + id + ">"
}

func userMention(id string) string {
	return "<@" + id + ">"
}
