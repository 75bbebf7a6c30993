// Package console is an interactive and scripted shell over an open store.
// Each statement is a single command such as GET, SET, or SAVE; HELP lists
// them all. A statement that has unbalanced quotes or brackets continues on
// the next line, so a JSON value given to SET can span several lines.
package console

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"dekarrin/sealdoc/internal/storage"
	"dekarrin/sealdoc/internal/verbosity"

	"github.com/google/shlex"
	"github.com/peterh/liner"
)

// Options is options to ExecuteScript and StartPrompt.
type Options struct {
	// Version is shown in the banner of the interactive prompt.
	Version string

	// HistoryFile is where interactive command history is kept. Empty means
	// ~/.sealdoc/history.
	HistoryFile string

	// Indent is used when showing JSON. Empty means two spaces.
	Indent string
}

type consoleState struct {
	engine        *storage.Engine
	running       bool         // only valid if in interactive mode
	prompt        *liner.State // only valid if in interactive mode
	usingHistFile bool         // only valid if in interactive mode
	histFile      string
	version       string
	indent        string
	out           verbosity.OutputWriter
	interactive   bool
}

func newConsoleState(engine *storage.Engine, out verbosity.OutputWriter, opts Options, interactive bool) *consoleState {
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	return &consoleState{
		engine:      engine,
		histFile:    opts.HistoryFile,
		version:     opts.Version,
		indent:      indent,
		out:         out,
		interactive: interactive,
		running:     interactive,
	}
}

// normalizeLine trims the line and drops it entirely if it is a comment.
// Comments are only recognized at the start of a line, since '#' and "//"
// are common inside JSON strings.
func normalizeLine(line string) string {
	cmd := strings.TrimFunc(line, unicode.IsSpace)
	if strings.HasPrefix(cmd, "#") || strings.HasPrefix(cmd, "//") {
		return ""
	}
	return cmd
}

// isCompleteStatement returns whether stmt can be executed as-is, or needs
// more lines: it does while a quote is open or a bracket is unclosed.
func isCompleteStatement(stmt string) bool {
	depth := 0
	var quote rune
	escaped := false
	for _, ch := range stmt {
		if escaped {
			escaped = false
			continue
		}
		if quote != 0 {
			switch ch {
			case '\\':
				escaped = quote == '"'
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return quote == 0 && depth <= 0
}

func executeLine(state *consoleState, line string) (cmdOutput string, err error) {
	stmt := normalizeLine(line)
	if stmt == "" {
		state.out.Trace("ignoring empty input\n")
		return "", nil
	}

	output, executed, err := commands.executeIfIsCommand(state, stmt)
	if executed {
		return output, err
	}

	name := stmt
	if tokens, splitErr := shlex.Split(stmt); splitErr == nil && len(tokens) > 0 {
		name = tokens[0]
	}
	return "", fmt.Errorf("unknown command %q; type HELP for a list of commands", name)
}

// ExecuteScript executes the statements read from r against engine, one
// after another, stopping at the first that fails.
//
// Lines whose first non-space characters are "#" or "//" are comments. Each
// statement's output is written as an INFO-level message to out.
//
// It returns the number of lines that were processed successfully along with
// the error that stopped execution, if any.
func ExecuteScript(r io.Reader, engine *storage.Engine, out verbosity.OutputWriter, opts Options) (lines int, err error) {
	state := newConsoleState(engine, out, opts, false)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	numLinesRead := 0
	stmt := ""

	for scanner.Scan() {
		lineNum++
		partial := normalizeLine(scanner.Text())
		if partial == "" && stmt == "" {
			numLinesRead = lineNum
			continue
		}
		stmt += partial
		if !isCompleteStatement(stmt) {
			stmt += "\n"
			continue
		}

		cmdOutput, err := executeLine(state, stmt)
		if err != nil {
			return numLinesRead, fmt.Errorf("line %d: %w", lineNum, err)
		}
		showScriptLineOutput(out, cmdOutput)
		numLinesRead = lineNum
		stmt = ""
	}
	if err = scanner.Err(); err != nil {
		return numLinesRead, err
	}

	if strings.TrimSpace(stmt) != "" {
		return numLinesRead, fmt.Errorf("line %d: statement is not terminated", lineNum)
	}
	return numLinesRead, nil
}

// StartPrompt runs an interactive prompt against engine until the user exits
// or input ends.
func StartPrompt(engine *storage.Engine, out verbosity.OutputWriter, opts Options) {
	prefix := "sealdoc> "

	state := newConsoleState(engine, out, opts, true)
	prompt := liner.NewLiner()
	defer prompt.Close()
	state.prompt = prompt
	prompt.SetCtrlCAborts(true)
	prompt.SetMultiLineMode(true)
	prompt.SetCompleter(func(line string) []string {
		return autoComplete(state, line)
	})
	state.loadHistFile()

	printBanner(state)

	for state.running {
		// histCmd is cmd with spaces instead of newlines, since liner cannot
		// track the cursor through multi-line history entries.
		cmd, histCmd, err := promptUntilFullStatement(state, prefix)
		if err == liner.ErrPromptAborted {
			state.out.Debug("console was aborted\n")
			state.running = false
			continue
		} else if err == io.EOF {
			state.out.Debug("console hit EOF\n")
			state.running = false
			continue
		} else if err != nil {
			state.out.Error("%v\n", err)
			state.running = false
			continue
		}

		if strings.TrimFunc(cmd, unicode.IsSpace) == "" {
			continue
		}

		prompt.AppendHistory(histCmd)
		state.writeHistFile()

		cmdOutput, err := executeLine(state, cmd)
		if err != nil {
			state.out.Error("%v\n", err)
		} else if cmdOutput != "" {
			fmt.Printf("%s\n", cmdOutput)
		}
	}
}

func promptUntilFullStatement(state *consoleState, prefix string) (inputWithNewlines string, inputWithSpaces string, err error) {
	var histBuf *bytes.Buffer
	defer func() {
		if histBuf != nil {
			if err := resumeHistory(state.prompt, histBuf); err != nil {
				state.out.Warn("while resuming history, got an error: %v\n", err)
			}
		}
	}()

	onFirstLineOfInput := true
	cmd := ""
	cmdWithSpaces := ""

	firstLevelPrefix := prefix
	for {
		partialCmd, err := state.prompt.Prompt(prefix)
		if err == liner.ErrPromptAborted && !onFirstLineOfInput {
			// abort the multi-line, but not the entire program
			cmd = ""
			cmdWithSpaces = ""
			onFirstLineOfInput = true
			prefix = firstLevelPrefix
			continue
		} else if err != nil {
			return "", "", err
		}
		partial := normalizeLine(partialCmd)
		if partial == "" && onFirstLineOfInput {
			return "", "", nil
		}
		cmd += partial
		cmdWithSpaces += partial

		if isCompleteStatement(cmd) {
			return cmd, cmdWithSpaces, nil
		}

		cmd += "\n"
		cmdWithSpaces += " "
		if onFirstLineOfInput {
			prefix = "... "
			histBuf, err = suspendHistory(state.prompt)
			if err != nil {
				state.out.Warn("while suspending history, got an error: %v\n", err)
			}
		}
		onFirstLineOfInput = false
	}
}

func resumeHistory(prompt *liner.State, buf *bytes.Buffer) error {
	_, err := prompt.ReadHistory(buf)
	return err
}

// suspendHistory moves the history out of the prompt so that the up arrow
// does not pull old statements into the middle of a multi-line one.
func suspendHistory(prompt *liner.State) (*bytes.Buffer, error) {
	buf := bytes.NewBuffer([]byte{})
	if _, err := prompt.WriteHistory(buf); err != nil {
		return nil, err
	}
	prompt.ClearHistory()
	return buf, nil
}

func printBanner(state *consoleState) {
	status := state.engine.Status()
	state.out.Info("[sealdoc v%v]\n", state.version)
	state.out.Info("%s (%s)\n", status.Path, describeMode(status))
	state.out.Info("HELP for help.\n")
}

func showScriptLineOutput(out verbosity.OutputWriter, cmdOutput string) {
	if cmdOutput != "" {
		out.Info("%s\n", cmdOutput)
	}
}
