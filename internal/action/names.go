package action

import (
	"regexp"
	"strings"

	"kidsmoney/internal/model"
)

var userIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

var blockedNameFragments = []string{
	"admin",
	"banker",
	"shit",
	"fuck",
	"bitch",
	"nazi",
}

const maxNameLength = 24

func displayName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == ' ' || r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		}
	}
	res := strings.TrimSpace(string(out))
	if len(res) < 3 {
		res = "Kid " + res
	}
	if len(res) > maxNameLength {
		res = strings.TrimSpace(res[:maxNameLength])
	}
	return res
}

func validateUserID(id string) error {
	if !userIDRE.MatchString(id) {
		return model.Reject(model.KindValidation, "user id must be 3-64 letters, digits, '_' or '-'")
	}
	return nil
}

func validateName(name string, role model.Role) error {
	lower := strings.ToLower(name)
	for _, fragment := range blockedNameFragments {
		if role != model.RolePlayer && (fragment == "admin" || fragment == "banker") {
			continue
		}
		if strings.Contains(lower, fragment) {
			return model.Reject(model.KindValidation, "name contains blocked content")
		}
	}
	return nil
}
