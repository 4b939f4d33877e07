package game

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/pipeline"
)

const (
	minCharacterName = 3
	maxCharacterName = 16
	minAccountName   = 3
	maxAccountName   = 32
)

var (
	characterNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z'-]*$`)
	accountNamePattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]*$`)
)

// checkCharacterName applies the name rules that need no store access.
func checkCharacterName(v *pipeline.Violations, name string) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minCharacterName || n > maxCharacterName {
		v.Add("name", "length", fmt.Sprintf("must be between %d and %d characters", minCharacterName, maxCharacterName))
	}
	if name != "" && !characterNamePattern.MatchString(name) {
		v.Add("name", "charset", "must start with a letter and contain only letters, apostrophes and hyphens")
	}
}

func checkAccountName(v *pipeline.Violations, name string) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minAccountName || n > maxAccountName {
		v.Add("name", "length", fmt.Sprintf("must be between %d and %d characters", minAccountName, maxAccountName))
	}
	if name != "" && !accountNamePattern.MatchString(name) {
		v.Add("name", "charset", "must start with a letter or digit and contain only letters, digits, spaces, dots, dashes and underscores")
	}
}

func checkClass(v *pipeline.Violations, class models.CharacterClass) {
	if !class.Valid() {
		v.Add("class", "known_class", fmt.Sprintf("must be one of %v", models.Classes))
	}
}
