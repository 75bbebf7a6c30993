package console

import (
	"os"
	"path/filepath"
	"strings"

	"dekarrin/sealdoc/internal/docpath"

	"github.com/google/shlex"
)

// commands whose single argument is a file on disk.
var fileArgCommands = map[string]bool{
	"IMPORT": true,
	"EXPORT": true,
	"REKEY":  true,
}

// commands whose first argument is a document path.
var pathArgCommands = map[string]bool{
	"GET":    true,
	"SET":    true,
	"DEL":    true,
	"DELETE": true,
	"KEYS":   true,
	"LS":     true,
}

func autoComplete(state *consoleState, line string) (candidates []string) {
	parts, err := shlex.Split(line)
	if err != nil || len(parts) == 0 {
		return autoCompleteCommand(line)
	}
	// still on the command itself
	if len(parts) == 1 && !strings.HasSuffix(line, " ") {
		return autoCompleteCommand(line)
	}

	cmd := strings.ToUpper(parts[0])
	if fileArgCommands[cmd] {
		return autoCompleteFilename(parts, line)
	}
	if pathArgCommands[cmd] {
		return autoCompleteDocPath(state, parts, line)
	}
	return nil
}

func autoCompleteCommand(partial string) (candidates []string) {
	commandNames := commands.names()
	for _, word := range commandNames {
		if strings.HasPrefix(strings.ToLower(word), partial) {
			candidates = append(candidates, strings.ToLower(word))
		}
		if strings.HasPrefix(word, partial) {
			candidates = append(candidates, word)
		}
	}
	if len(candidates) == 0 {
		for _, word := range commandNames {
			if strings.HasPrefix(word, strings.ToUpper(partial)) {
				candidates = append(candidates, word)
			}
		}
	}
	return candidates
}

// lastArg gives everything in line before the argument being completed, and
// the partial argument itself. Options such as -c are skipped over.
func lastArg(parts []string, line string) (prefix []string, partial string, ok bool) {
	if strings.HasSuffix(line, " ") {
		prefix, partial = parts, ""
	} else {
		prefix, partial = parts[:len(parts)-1], parts[len(parts)-1]
	}
	for _, p := range prefix[1:] {
		if !strings.HasPrefix(p, "-") {
			// already past the first argument
			return nil, "", false
		}
	}
	return prefix, partial, true
}

func autoCompleteFilename(parts []string, line string) []string {
	prefix, partial, ok := lastArg(parts, line)
	if !ok {
		return nil
	}

	dir := filepath.Dir(partial)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	lead := strings.Join(prefix, " ") + " "
	var candidates []string
	for _, entry := range entries {
		full := entry.Name()
		if dir != "." || strings.HasPrefix(partial, "."+string(filepath.Separator)) {
			full = filepath.Join(dir, entry.Name())
		}
		if !strings.HasPrefix(full, partial) {
			continue
		}
		if entry.IsDir() {
			full += string(filepath.Separator)
		}
		candidates = append(candidates, lead+full)
	}
	return candidates
}

func autoCompleteDocPath(state *consoleState, parts []string, line string) []string {
	prefix, partial, ok := lastArg(parts, line)
	if !ok {
		return nil
	}

	parent, leaf := "", partial
	if idx := strings.LastIndex(partial, "."); idx >= 0 {
		parent, leaf = partial[:idx], partial[idx+1:]
	}
	keys, err := docpath.Keys(state.engine.Read(), parent)
	if err != nil {
		return nil
	}

	lead := strings.Join(prefix, " ") + " "
	if parent != "" {
		lead += parent + "."
	}
	var candidates []string
	for _, k := range keys {
		if strings.HasPrefix(k, leaf) {
			candidates = append(candidates, lead+k)
		}
	}
	return candidates
}
