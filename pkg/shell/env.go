package shell

import (
	"os"
	"regexp"
	"strings"
)

var reEnv = regexp.MustCompile(`\$?\${([^}{]+)}`)

// ReplaceEnvVars expands `${NAME}` and `${NAME:default}` from the process
// environment.
func ReplaceEnvVars(text string) string {
	return Expand(text, os.LookupEnv)
}

// Expand replaces `${NAME}` with lookup(NAME). A name unknown to lookup takes
// the default after ':', or stays as is without one. `$${NAME}` is an escape
// for a literal `${NAME}`.
func Expand(text string, lookup func(string) (string, bool)) string {
	return reEnv.ReplaceAllStringFunc(text, func(match string) string {
		if strings.HasPrefix(match, "$$") {
			return match[1:]
		}

		name := match[2 : len(match)-1]
		name, def, hasDef := strings.Cut(name, ":")

		if value, ok := lookup(name); ok {
			return value
		}
		if hasDef {
			return def
		}
		return match
	})
}
