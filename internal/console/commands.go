package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/config"
	"dekarrin/sealdoc/internal/docpath"
	"dekarrin/sealdoc/internal/misc"
	"dekarrin/sealdoc/internal/storage"

	"github.com/google/shlex"
)

// defaultWaitTimeout bounds RELOAD and SAVE when no timeout is given.
const defaultWaitTimeout = 30 * time.Second

type command struct {
	interactiveOnly bool

	// can only have one of argsExec or lineExec; if argsExec is set, lineExec will be ignored.
	// In argsExec, index 0 of argv is always the command in uppercase.
	argsExec func(state *consoleState, argv []string) (string, error)
	// in lineExec, cmdName is always the command in uppercase.
	lineExec func(state *consoleState, line string, cmdName string) (string, error)
	helpDesc string

	// string shown after this name of the command in help; can be used to give variables.
	helpInvoke string

	// setting this to non-zero will make execs and helpDesc ignored; they will be taken from the command
	// given here. Caveat: string given here must exist as a key in the 'commands' map.
	aliasFor string
}

func (c command) exec(state *consoleState, argv []string, line string) (out string, err error) {
	if c.argsExec != nil {
		out, err = c.argsExec(state, argv)
	} else if c.lineExec != nil {
		out, err = c.lineExec(state, line, argv[0])
	} else {
		panic("command does not give either argsExec or lineExec")
	}
	return out, err
}

type commandList map[string]command

func (cl commandList) parseCommand(in string) (isCommand bool, cmdToExec command, argv []string) {
	// only the first word decides the command; the rest may not be valid
	// shell syntax for line commands such as SET.
	firstWord := strings.FieldsFunc(in, unicode.IsSpace)
	if len(firstWord) < 1 {
		return false, cmdToExec, nil
	}
	name := strings.ToUpper(firstWord[0])
	cmd, ok := cl[name]
	if !ok {
		return false, cmdToExec, nil
	}

	target := cmd
	if cmd.aliasFor != "" {
		target = cl[cmd.aliasFor]
	}
	if target.argsExec == nil {
		return true, cmd, []string{name}
	}

	cmdTokens, err := shlex.Split(in)
	if err != nil || len(cmdTokens) < 1 {
		return false, cmdToExec, nil
	}
	cmdTokens[0] = name
	return true, cmd, cmdTokens
}

func (cl commandList) executeIfIsCommand(state *consoleState, in string) (out string, isCommand bool, err error) {
	parsed, cmd, argv := cl.parseCommand(in)
	if !parsed {
		return "", false, nil
	}

	if cmd.aliasFor != "" {
		actualCmd, ok := cl[cmd.aliasFor]
		if !ok {
			panic("command is alias for " + cmd.aliasFor + " but that command doesn't exist")
		}
		cmd = actualCmd
	}

	if cmd.interactiveOnly && !state.interactive {
		aliasStr := strings.Join(cl.getAllAliasesOf(argv[0]), "/")
		return "", true, fmt.Errorf("%s command only available in interactive mode", aliasStr)
	}

	out, err = cmd.exec(state, argv, in)
	return out, true, err
}

func (cl commandList) getAllAliasesOf(cmdName string) []string {
	givenCmd, ok := cl[cmdName]
	if !ok {
		return []string{}
	}

	aliasTarget := cmdName
	if givenCmd.aliasFor != "" {
		aliasTarget = givenCmd.aliasFor
	}
	aliases := []string{}

	for cmdName, cmd := range cl {
		if cmd.aliasFor == aliasTarget {
			aliases = append(aliases, cmdName)
		}
	}

	sort.Strings(aliases)
	aliases = append([]string{aliasTarget}, aliases...)
	return aliases
}

func (cl commandList) names() []string {
	keys := make([]string, 0, len(cl))
	for k := range cl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var commands = commandList{
	"GET": {
		helpInvoke: "[-c] [path]",
		helpDesc:   "Show the value at the given dotted path, or the whole document if no path is given. List items are addressed by index, as in servers.0.host. Output is indented JSON unless -c is given for compact output.",
		argsExec:   executeCommandGet,
	},
	"SET": {
		helpInvoke: "path value",
		helpDesc:   "Set the value at the given dotted path to the given JSON value. Missing objects along the path are created. A path of . replaces the whole document, which must then be an object. The value may span several lines.",
		lineExec:   executeCommandSet,
	},
	"DEL": {
		helpInvoke: "path",
		helpDesc:   "Delete the value at the given dotted path. Deleting a list item shifts the items after it down.",
		argsExec:   executeCommandDel,
	},
	"DELETE": {aliasFor: "DEL"},
	"KEYS": {
		helpInvoke: "[path]",
		helpDesc:   "List the keys of the object, or the indexes of the list, at the given dotted path. With no path, lists the top-level keys of the document.",
		argsExec:   executeCommandKeys,
	},
	"LS": {aliasFor: "KEYS"},
	"RELOAD": {
		helpInvoke: "[-t timeout]",
		helpDesc:   "Discard the in-memory document, including changes not yet saved, and read it again from the file.",
		argsExec:   executeCommandReload,
	},
	"SAVE": {
		helpInvoke: "[-t timeout]",
		helpDesc:   "Wait until every change made so far has been written to the file. Changes are always saved in the background; this only waits for that to finish.",
		argsExec:   executeCommandSave,
	},
	"SYNC": {aliasFor: "SAVE"},
	"REKEY": {
		helpInvoke: "[keyfile]",
		helpDesc:   "Re-encrypt the file under the key read from keyfile, or under a key typed at a prompt if no keyfile is given. If the store is not encrypted, it becomes encrypted.",
		argsExec:   executeCommandRekey,
	},
	"EXPORT": {
		helpInvoke: "[-c] file",
		helpDesc:   "Write the document to the given file as plain, unencrypted JSON. Output is indented unless -c is given for compact output.",
		argsExec:   executeCommandExport,
	},
	"IMPORT": {
		helpInvoke: "[-m] file",
		helpDesc:   "Replace the document with the JSON object in the given file. If -m is given, the top-level keys of the file are merged into the document instead.",
		argsExec:   executeCommandImport,
	},
	"INFO": {
		helpDesc: "Show how the file on disk was written: its format version, whether it is compressed and encrypted, and its size.",
		argsExec: executeCommandInfo,
	},
	"STATUS": {
		helpDesc: "Show the state of the open store, including whether there are unsaved changes and whether a background save has failed.",
		argsExec: executeCommandStatus,
	},
	"CLEARHIST": {
		interactiveOnly: true,
		helpDesc:        "Clear the command history.",
		argsExec:        executeCommandClearhist,
	},
	"EXIT": {
		interactiveOnly: true,
		helpDesc:        "Exit the interactive session.",
		argsExec: func(state *consoleState, args []string) (string, error) {
			state.running = false
			return "", nil
		},
	},
	"QUIT": {aliasFor: "EXIT"},
	"BYE":  {aliasFor: "EXIT"},
}

func init() {
	// have to add this afterwards else we get into an initialization loop
	commands["HELP"] = command{
		helpInvoke: "[command]",
		helpDesc:   "Show this help. If command is given, shows only help on that particular command.",
		argsExec: func(state *consoleState, argv []string) (string, error) {
			if len(argv) >= 2 {
				return showHelp(argv[1]), nil
			}
			return showHelp(""), nil
		},
	}
}

// pathArg converts a path given on the command line to a docpath path; "."
// is the document itself.
func pathArg(s string) string {
	if s == "." {
		return ""
	}
	return s
}

func renderJSON(v interface{}, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// parseValue parses a single JSON value with the same number handling as
// documents read from the store.
func parseValue(s string) (interface{}, error) {
	doc, err := codec.JSONSerializer{}.Deserialize([]byte(`{"v":` + s + "\n}"))
	if err != nil || len(doc) != 1 {
		return nil, fmt.Errorf("not a single JSON value: %s", s)
	}
	return doc["v"], nil
}

// writeDoc stores doc and describes what happened. An earlier background
// save failure is reported as an error even though doc was accepted.
func writeDoc(state *consoleState, doc codec.Document, done string) (string, error) {
	if err := state.engine.Write(doc); err != nil {
		if errors.Is(err, storage.ErrIO) {
			return "", fmt.Errorf("%s, but an earlier background save failed: %w", done, err)
		}
		return "", err
	}
	return state.out.InfoSprintf("%s", done), nil
}

func waitTimeoutFlags(timeout *time.Duration) flagActions {
	return flagActions{
		't': func(i *int, argv []string) error {
			if *i+1 >= len(argv) {
				return fmt.Errorf("-t requires an argument")
			}
			*i++
			d, err := time.ParseDuration(argv[*i])
			if err != nil {
				return fmt.Errorf("-t: %v", err)
			}
			if d <= 0 {
				return fmt.Errorf("-t must be greater than zero")
			}
			*timeout = d
			return nil
		},
	}
}

func executeCommandGet(state *consoleState, argv []string) (output string, err error) {
	var compact bool
	var path string
	_, err = parseCommandFlags(
		argv,
		flagActions{
			'c': func(i *int, argv []string) error {
				compact = true
				return nil
			},
		},
		posArgActions{
			{
				parse: func(i *int, argv []string) error {
					path = pathArg(argv[*i])
					return nil
				},
				optional: true,
			},
		},
	)
	if err != nil {
		return "", err
	}

	doc := state.engine.Read()
	if doc == nil && path == "" {
		return "(no document)", nil
	}
	v, err := docpath.Get(doc, path)
	if err != nil {
		return "", err
	}

	indent := state.indent
	if compact {
		indent = ""
	}
	return renderJSON(v, indent)
}

func executeCommandSet(state *consoleState, line string, cmdName string) (output string, err error) {
	rest := strings.TrimLeftFunc(line[len(cmdName):], unicode.IsSpace)
	end := strings.IndexFunc(rest, unicode.IsSpace)
	if rest == "" || end < 0 {
		return "", fmt.Errorf("need to give a path and a value")
	}
	path := pathArg(rest[:end])
	valueText := strings.TrimSpace(rest[end:])

	value, err := parseValue(valueText)
	if err != nil {
		return "", err
	}

	doc, err := docpath.Set(state.engine.Read(), path, value)
	if err != nil {
		return "", err
	}

	if path == "" {
		return writeDoc(state, doc, "Replaced document")
	}
	return writeDoc(state, doc, fmt.Sprintf("Set %s", path))
}

func executeCommandDel(state *consoleState, argv []string) (output string, err error) {
	var path string
	_, err = parseCommandFlags(argv, nil, posArgActions{
		{
			parse: func(i *int, argv []string) error {
				path = pathArg(argv[*i])
				return nil
			},
		},
	})
	if err != nil {
		return "", err
	}

	doc, err := docpath.Delete(state.engine.Read(), path)
	if err != nil {
		return "", err
	}
	return writeDoc(state, doc, fmt.Sprintf("Deleted %s", path))
}

func executeCommandKeys(state *consoleState, argv []string) (output string, err error) {
	var path string
	_, err = parseCommandFlags(argv, nil, posArgActions{
		{
			parse: func(i *int, argv []string) error {
				path = pathArg(argv[*i])
				return nil
			},
			optional: true,
		},
	})
	if err != nil {
		return "", err
	}

	doc := state.engine.Read()
	if doc == nil && path == "" {
		return "(no document)", nil
	}
	keys, err := docpath.Keys(doc, path)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "(empty)", nil
	}
	return strings.Join(keys, "\n"), nil
}

func executeCommandReload(state *consoleState, argv []string) (output string, err error) {
	timeout := defaultWaitTimeout
	if _, err := parseCommandFlags(argv, waitTimeoutFlags(&timeout), nil); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := state.engine.Load(ctx); err != nil {
		return "", err
	}

	doc := state.engine.Read()
	if doc == nil {
		return state.out.InfoSprintf("Reloaded; file has no document"), nil
	}
	return state.out.InfoSprintf("Reloaded document with %s", misc.CountOf("top-level key", "top-level keys", len(doc))), nil
}

func executeCommandSave(state *consoleState, argv []string) (output string, err error) {
	timeout := defaultWaitTimeout
	if _, err := parseCommandFlags(argv, waitTimeoutFlags(&timeout), nil); err != nil {
		return "", err
	}
	if state.engine.Mode() == storage.ReadOnly {
		return state.out.InfoSprintf("Store is read-only; nothing to save"), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := state.engine.Sync(ctx); err != nil {
		return "", err
	}
	saves := state.out.DebugSprintf(" (%s so far)", misc.CountOf("save", "saves", state.engine.Status().Flushes))
	return state.out.InfoSprintf("All changes saved%s", saves), nil
}

func executeCommandRekey(state *consoleState, argv []string) (output string, err error) {
	var keyFile string
	_, err = parseCommandFlags(argv, nil, posArgActions{
		{
			parse: func(i *int, argv []string) error {
				keyFile = argv[*i]
				return nil
			},
			optional: true,
		},
	})
	if err != nil {
		return "", err
	}

	var key []byte
	if keyFile != "" {
		key, err = config.ReadKeyFile(keyFile)
		if err != nil {
			return "", err
		}
	} else {
		if !state.interactive {
			return "", fmt.Errorf("need to give a keyfile when not running interactively")
		}
		key, err = promptNewKey(state)
		if err != nil {
			return "", err
		}
	}

	if err := state.engine.ChangeEncryptionKey(key); err != nil {
		return "", err
	}
	return state.out.InfoSprintf("File is now encrypted under the new key"), nil
}

func promptNewKey(state *consoleState) ([]byte, error) {
	first, err := state.prompt.PasswordPrompt("New key: ")
	if err != nil {
		return nil, err
	}
	if first == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	second, err := state.prompt.PasswordPrompt("Repeat new key: ")
	if err != nil {
		return nil, err
	}
	if first != second {
		return nil, fmt.Errorf("keys do not match")
	}
	return []byte(first), nil
}

func executeCommandExport(state *consoleState, argv []string) (output string, err error) {
	var compact bool
	var file string
	_, err = parseCommandFlags(
		argv,
		flagActions{
			'c': func(i *int, argv []string) error {
				compact = true
				return nil
			},
		},
		posArgActions{
			{
				parse: func(i *int, argv []string) error {
					file = argv[*i]
					return nil
				},
			},
		},
	)
	if err != nil {
		return "", err
	}

	doc := state.engine.Read()
	if doc == nil {
		return "", fmt.Errorf("there is no document to export")
	}
	js := codec.JSONSerializer{Indent: state.indent}
	if compact {
		js.Indent = ""
	}
	data, err := js.Serialize(doc)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(file, append(data, '\n'), 0600); err != nil {
		return "", fmt.Errorf("could not export to file: %v", err)
	}
	return state.out.InfoSprintf("Wrote %s to %s", misc.CountOf("top-level key", "top-level keys", len(doc)), file), nil
}

func executeCommandImport(state *consoleState, argv []string) (output string, err error) {
	var merge bool
	var file string
	_, err = parseCommandFlags(
		argv,
		flagActions{
			'm': func(i *int, argv []string) error {
				merge = true
				return nil
			},
		},
		posArgActions{
			{
				parse: func(i *int, argv []string) error {
					file = argv[*i]
					return nil
				},
			},
		},
	)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("could not import file: %v", err)
	}
	imported, err := codec.JSONSerializer{}.Deserialize(data)
	if err != nil {
		return "", fmt.Errorf("could not import file: %w", err)
	}

	keyCount := misc.CountOf("top-level key", "top-level keys", len(imported))
	if !merge {
		return writeDoc(state, imported, fmt.Sprintf("Replaced document with %s from %s", keyCount, file))
	}

	doc := state.engine.Read()
	if doc == nil {
		doc = codec.Document{}
	}
	for k, v := range imported {
		doc[k] = v
	}
	return writeDoc(state, doc, fmt.Sprintf("Merged %s from %s", keyCount, file))
}

func executeCommandInfo(state *consoleState, argv []string) (output string, err error) {
	path := state.engine.Path()
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", err
	}

	rows := [][2]string{{"File", path}, {"Size", misc.CountOf("byte", "bytes", int(fi.Size()))}}
	if fi.Size() == 0 {
		rows = append(rows, [2]string{"Format", "empty file (no document)"})
	} else {
		h, err := codec.ReadHeader(f)
		if err != nil {
			return "", err
		}
		rows = append(rows,
			[2]string{"Format", h.String()},
			[2]string{"Compressed", yesNo(h.Compressed)},
			[2]string{"Encrypted", yesNo(h.Sealed)},
		)
	}
	return formatRows(rows), nil
}

func executeCommandStatus(state *consoleState, argv []string) (output string, err error) {
	s := state.engine.Status()

	lastFlush := "never"
	if !s.LastFlush.IsZero() {
		lastFlush = s.LastFlush.Format(time.RFC3339)
	}
	pending := "none"
	if s.PendingErr != nil {
		pending = s.PendingErr.Error()
	}
	doc := "none"
	if s.HasDocument {
		doc = "loaded"
	}

	return formatRows([][2]string{
		{"Engine", s.ID},
		{"File", s.Path},
		{"Mode", describeMode(s)},
		{"Document", doc},
		{"Unsaved changes", yesNo(s.Dirty || s.Flushing)},
		{"Saves", fmt.Sprintf("%d", s.Flushes)},
		{"Last save", lastFlush},
		{"Save failure", pending},
	}), nil
}

func executeCommandClearhist(state *consoleState, args []string) (output string, err error) {
	state.prompt.ClearHistory()
	state.writeHistFile()
	return state.out.InfoSprintf("Command history has been cleared"), nil
}

func describeMode(s storage.Status) string {
	parts := []string{"read-write"}
	if s.Mode == storage.ReadOnly {
		parts[0] = "read-only"
	}
	if s.Encrypted {
		parts = append(parts, "encrypted")
	}
	if s.Compressed {
		parts = append(parts, "compressed")
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatRows(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = misc.PadRight(r[0]+":", width+2) + r[1]
	}
	return strings.Join(lines, "\n")
}
