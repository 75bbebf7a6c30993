/*
Package verbosity handles suppression and allowing of output based on a
configured "verboseness" for a program.

A Verbosity says how much a program should say, and a Level says how important
a single message is. Verbosity.Allows decides whether a message at a Level is
shown:

	Normal.Allows(Info)    // returns true
	Quiet.Allows(Debug)    // returns false
	Verbose.Allows(Debug)  // returns true

The predefined Levels, in order of priority, are Trace, Debug, Info (and Warn,
which shares its priority), and Critical (and Error, which shares its
priority). Custom levels can be created with NewLevel relative to those.

OutputWriter

OutputWriter bundles a Verbosity with the destinations messages are written
to. Warn, Error, and Critical messages go to stderr prefixed with the level
name; everything else goes to stdout as-is. If logging is started with
StartLogging, every message is also logged, even ones the Verbosity
suppresses:

	var out OutputWriter
	out.Verbosity = Normal
	out.StartLogging(logFile)

	out.Info("printed, and logged")
	out.Debug("not printed, but still logged")

Setting the Verbosity to Silent with logging started makes an OutputWriter
behave like log.Printf.
*/
package verbosity

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

// OutputMessage is the struct that is passed to formatting templates before
// output occurs. Custom templates in an OutputWriter can refer to any field in
// this struct.
type OutputMessage struct {
	Level   Level
	Message string
}

// PrioritySeparation is the amount that each predefined Level's priority is
// separated by. The exceptions to this are Error, which has the same priority
// as Critical, and Warn, which has the same priority as Info.
const PrioritySeparation = 100

// Default templates used by an OutputWriter whose template fields are nil.
const (
	DefaultStdoutTemplateStr = "{{.Message}}"
	DefaultStderrTemplateStr = "{{.Level.Name}}: {{.Message}}"
	DefaultLogTemplateStr    = "{{.Level.Name}}: {{.Message}}"
)

var (
	defaultStdoutTemplate = template.Must(template.New("default-stdout").Parse(DefaultStdoutTemplateStr))
	defaultStderrTemplate = template.Must(template.New("default-stderr").Parse(DefaultStderrTemplateStr))
	defaultLogTemplate    = template.Must(template.New("default-log").Parse(DefaultLogTemplateStr))
)

// DefaultStderrFilter is used by OutputWriter if its StderrFilter is nil. It
// sends Warn and everything at Critical priority or above to stderr.
func DefaultStderrFilter(lv Level) bool {
	return lv == Warn || lv.Priority() >= Critical.Priority()
}

// Verbosity determines what the current level is and allows writing to/from
// logs and output streams.
//
// The zero-value is FullyVerbose, which allows all messages.
type Verbosity int

const (
	// Silent will not output any messages regardless of their level.
	Silent Verbosity = -1

	// FullyVerbose will output all messages, even those lower than Trace.
	FullyVerbose Verbosity = 0

	// Quiet will only output messages that are Critical level or higher.
	Quiet Verbosity = 1

	// Normal will only output messages that are Info level or higher.
	Normal Verbosity = 2

	// Verbose will only output messages that are Debug level or higher.
	Verbose Verbosity = 3

	// SuperVerbose will output all messages that are Trace level or higher.
	SuperVerbose Verbosity = 4
)

// ParseFromFlags parses a verbosity from whether quiet mode was given and the
// number of times a verbose flag was given. Quiet overrides any number of
// verbose flags. 0 verbose flags gives Normal, 1 gives Verbose, 2 gives
// SuperVerbose, and more gives FullyVerbose.
func ParseFromFlags(quiet bool, verboseNum int) Verbosity {
	if quiet {
		return Quiet
	}
	switch verboseNum {
	case 0:
		return Normal
	case 1:
		return Verbose
	case 2:
		return SuperVerbose
	default:
		return FullyVerbose
	}
}

// Allows returns whether the verbosity would allow the given level to be
// passed through as output.
func (ver Verbosity) Allows(level Level) bool {
	switch ver {
	case Silent:
		return false
	case Quiet:
		return level.priority >= Critical.priority
	case Normal:
		return level.priority >= Info.priority
	case Verbose:
		return level.priority >= Debug.priority
	case SuperVerbose:
		return level.priority >= Trace.priority
	default:
		// FullyVerbose, and anything made up by a caller, lets everything
		// through.
		return true
	}
}

func (ver Verbosity) String() string {
	switch ver {
	case Silent:
		return "silent"
	case FullyVerbose:
		return "fully-verbose"
	case Quiet:
		return "quiet"
	case Normal:
		return "normal"
	case Verbose:
		return "verbose"
	case SuperVerbose:
		return "super-verbose"
	default:
		return fmt.Sprintf("Verbosity(%d)", int(ver))
	}
}

// Level specifies the importance of a message. It is compared to a Verbosity
// to decide whether the message is shown.
type Level struct {
	priority int
	name     string
}

// Priority returns the integer value of a level, for creating custom levels
// relative to the predefined ones.
func (lv Level) Priority() int {
	return lv.priority
}

// Name returns the name of a level
func (lv Level) Name() string {
	return lv.name
}

var (
	// Trace is for very low-level detail, silenced by everything below
	// SuperVerbose.
	Trace = Level{priority: PrioritySeparation, name: "TRACE"}

	// Debug is for detail silenced by Normal and Quiet.
	Debug = Level{priority: 2 * PrioritySeparation, name: "DEBUG"}

	// Info is a typical level for a message that will be silenced by Quiet.
	Info = Level{priority: 3 * PrioritySeparation, name: "INFO"}

	// Warn has the priority of Info but is named "WARN".
	Warn = Level{priority: 3 * PrioritySeparation, name: "WARN"}

	// Critical is an urgent level for a message that is only silenced by
	// Silent.
	Critical = Level{priority: 4 * PrioritySeparation, name: "CRITICAL"}

	// Error has the priority of Critical but is named "ERROR".
	Error = Level{priority: 4 * PrioritySeparation, name: "ERROR"}
)

// NewLevel creates a custom Level. If name is empty, the priority is used as
// the name.
func NewLevel(priority int, name string) Level {
	if name == "" {
		name = fmt.Sprintf("%d", priority)
	}
	return Level{priority: priority, name: name}
}

// OutputWriter outputs text based on how important that text is and based on
// how verbose the OutputWriter is set to be.
//
// The zero value writes to os.Stdout and os.Stderr with FullyVerbose.
type OutputWriter struct {
	// Verbosity is used to determine what levels to allow through.
	Verbosity Verbosity

	// StderrFilter returns whether a message at the given level goes to
	// Stderr instead of Stdout. nil means DefaultStderrFilter.
	StderrFilter func(Level) bool

	// Stdout and Stderr are where output goes. nil means os.Stdout and
	// os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Templates executed on an OutputMessage to produce each line. nil means
	// the matching Default*TemplateStr.
	StderrTemplate *template.Template
	StdoutTemplate *template.Template
	LogTemplate    *template.Template

	// AutoNewline adds a trailing newline to output that does not have one.
	// Log output always gets one.
	AutoNewline bool

	// AutoCapitalize capitalizes the first letter of output.
	AutoCapitalize bool

	logger *log.Logger
}

// StartLogging turns on logging of every message to writer, replacing any
// previous log destination.
func (ow *OutputWriter) StartLogging(writer io.Writer) {
	ow.logger = log.New(writer, "", log.LstdFlags)
}

// StopLogging stops all logging activity.
func (ow *OutputWriter) StopLogging() {
	ow.logger = nil
}

// Logging returns whether logging has been started.
func (ow OutputWriter) Logging() bool {
	return ow.logger != nil
}

// Log writes a message to the log only, if logging is enabled.
func (ow OutputWriter) Log(lv Level, format string, a ...interface{}) {
	if ow.logger == nil {
		return
	}
	t := ow.LogTemplate
	if t == nil {
		t = defaultLogTemplate
	}
	ow.logger.Print(ow.formatForOutput(t, lv, format, a...))
}

// Output logs a message and, if the Verbosity allows lv, prints it.
func (ow OutputWriter) Output(lv Level, format string, a ...interface{}) {
	ow.Log(lv, format, a...)
	if !ow.Verbosity.Allows(lv) {
		return
	}

	toStderr := ow.StderrFilter
	if toStderr == nil {
		toStderr = DefaultStderrFilter
	}

	var dest io.Writer
	var t *template.Template
	if toStderr(lv) {
		dest, t = ow.Stderr, ow.StderrTemplate
		if dest == nil {
			dest = os.Stderr
		}
		if t == nil {
			t = defaultStderrTemplate
		}
	} else {
		dest, t = ow.Stdout, ow.StdoutTemplate
		if dest == nil {
			dest = os.Stdout
		}
		if t == nil {
			t = defaultStdoutTemplate
		}
	}

	fmt.Fprint(dest, ow.formatForOutput(t, lv, format, a...))
}

// Critical outputs the given message at Critical level.
func (ow OutputWriter) Critical(format string, a ...interface{}) {
	ow.Output(Critical, format, a...)
}

// Error outputs the given message at Error level.
func (ow OutputWriter) Error(format string, a ...interface{}) {
	ow.Output(Error, format, a...)
}

// Info outputs the given message at Info level.
func (ow OutputWriter) Info(format string, a ...interface{}) {
	ow.Output(Info, format, a...)
}

// Warn outputs the given message at Warn level.
func (ow OutputWriter) Warn(format string, a ...interface{}) {
	ow.Output(Warn, format, a...)
}

// Debug outputs the given message at Debug level.
func (ow OutputWriter) Debug(format string, a ...interface{}) {
	ow.Output(Debug, format, a...)
}

// Trace outputs the given message at Trace level.
func (ow OutputWriter) Trace(format string, a ...interface{}) {
	ow.Output(Trace, format, a...)
}

// ErrorCause outputs the message at Error level. err is not printed; it is
// there so the method can be used where an error callback is expected.
func (ow OutputWriter) ErrorCause(err error, format string, a ...interface{}) {
	ow.Output(Error, format, a...)
}

// Sprintf returns the formatted string if the Verbosity allows lv, and ""
// otherwise. Nothing is logged.
func (ow OutputWriter) Sprintf(lv Level, format string, a ...interface{}) string {
	if ow.Verbosity.Allows(lv) {
		return fmt.Sprintf(format, a...)
	}
	return ""
}

// InfoSprintf is Sprintf at Info level.
func (ow OutputWriter) InfoSprintf(format string, a ...interface{}) string {
	return ow.Sprintf(Info, format, a...)
}

// DebugSprintf is Sprintf at Debug level.
func (ow OutputWriter) DebugSprintf(format string, a ...interface{}) string {
	return ow.Sprintf(Debug, format, a...)
}

func (ow OutputWriter) formatForOutput(t *template.Template, lv Level, messageFormat string, messageArgs ...interface{}) string {
	om := OutputMessage{Level: lv, Message: fmt.Sprintf(messageFormat, messageArgs...)}
	var buf bytes.Buffer
	t.Execute(&buf, om)
	str := buf.String()
	if ow.AutoNewline && !strings.HasSuffix(str, "\n") {
		str += "\n"
	}
	if ow.AutoCapitalize {
		str = firstCharToUpper(str)
	}
	return str
}

func firstCharToUpper(str string) string {
	r, size := utf8.DecodeRuneInString(str)
	if size == 0 {
		return str
	}
	return string(unicode.ToUpper(r)) + str[size:]
}
