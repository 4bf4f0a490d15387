// Package names validates store member names.  Variable and group names
// become directory components on disk, so anything that could escape the
// store root or collide with the store's own control files is rejected.
package names

import (
	"regexp"
)

const (
	// A valid name must start with a letter, digit or underscore.
	// It may contain any character after that except control and slash.
	pattern = `^[\pL\pN_][^\pC/]*$`
	// It may not end with a whitespace character.
	antiPattern = `\pZ$`
)

var (
	re     = regexp.MustCompile(pattern)
	antiRe = regexp.MustCompile(antiPattern)
)

// IsValid returns true if name can serve as a store member name.  Names
// starting with a double underscore are reserved for control files.
func IsValid(name string) bool {
	if len(name) >= 2 && name[0] == '_' && name[1] == '_' {
		return false
	}
	return re.MatchString(name) && !antiRe.MatchString(name)
}
