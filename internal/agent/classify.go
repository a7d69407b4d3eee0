package agent

import "strings"

// taskVerbs is the keyword heuristic spec.md §4.6 step 3 calls for:
// imperative verbs that mark a turn as "doing something" rather than
// idle conversation. Deliberately simple — same "fusion masks inaccuracy"
// license spec.md §4.4 gives entity extraction applies here too.
var taskVerbs = map[string]string{
	"build":     "build",
	"fix":       "debug",
	"debug":     "debug",
	"implement": "build",
	"write":     "build",
	"create":    "build",
	"deploy":    "deployment",
	"run":       "execution",
	"test":      "test",
	"refactor":  "refactor",
	"install":   "setup",
	"configure": "setup",
	"update":    "build",
	"add":       "build",
	"remove":    "build",
	"delete":    "build",
	"migrate":   "migration",
	"review":    "review",
}

// classifyTask reports whether text reads as a task request and, if so,
// a coarse task_type derived from the first matched verb.
func classifyTask(text string) (isTask bool, taskType string) {
	lower := strings.ToLower(text)
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if t, ok := taskVerbs[word]; ok {
			return true, t
		}
	}
	return false, ""
}
