package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/config"
	"dekarrin/sealdoc/internal/console"
	"dekarrin/sealdoc/internal/storage"
	"dekarrin/sealdoc/internal/verbosity"

	"github.com/peterh/liner"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	currentVersion = "0.1.0"

	// ExitStatusIntegrityError is the exit status given when a store file fails authentication, cannot be decoded,
	// or was written with different settings than it was opened with.
	ExitStatusIntegrityError = 5

	// ExitStatusIOError is the exit status given by a failure to read or write a file.
	ExitStatusIOError = 4

	// ExitStatusArgumentsError is the exit status given when there is a problem parsing the arguments or config file.
	ExitStatusArgumentsError = 3

	// ExitStatusScriptCommandError is the exit status given when there is a problem with a command in a script or passed directly to sealdoc.
	ExitStatusScriptCommandError = 2

	// ExitStatusGenericError is the exit status given by an error not already covered by a more specific status code.
	ExitStatusGenericError = 1

	// ExitSuccess is the result for successful exit.
	ExitSuccess = 0
)

var returnCode int = ExitSuccess

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			// we are panicking; don't let the check stop the panic
			panic("unrecoverable panic occured")
		} else {
			os.Exit(returnCode)
		}
	}()

	// parse cli options
	fileArg := kingpin.Arg("file", "the store file to open; overrides the path in the config file (if any)").String()
	commandFlag := kingpin.Flag("command", "command(s) to execute, after which the program exits. Comes before script file execution if both set. If any command fails, this program will immediately terminate and return non-zero without executing the rest of the commands or scripts.").Short('C').Strings()
	configFlag := kingpin.Flag("config", "read settings from the given YAML config file; flags override anything set in it").ExistingFile()
	compressFlag := kingpin.Flag("compress", "compress the document with zstd before writing it").Short('z').Bool()
	createDirsFlag := kingpin.Flag("create-dirs", "create missing parent directories of a new store file").Bool()
	encryptFlag := kingpin.Flag("encrypt", "encrypt the document; the key is read from --key-file, --key-env, or a prompt").Short('e').Bool()
	historyFlag := kingpin.Flag("history", "file to keep interactive command history in").String()
	indentFlag := kingpin.Flag("indent", "indent used when writing and showing JSON; only spaces and tabs are allowed").String()
	inspectFlag := kingpin.Flag("inspect", "print how the store file was written, without decrypting it, and exit").Bool()
	keyEnvFlag := kingpin.Flag("key-env", "read the encryption key from the given environment variable").String()
	keyFileFlag := kingpin.Flag("key-file", "read the encryption key from the given file").Short('k').String()
	loadTimeoutFlag := kingpin.Flag("load-timeout", "how long to wait for the store file to be read when opening it").Duration()
	logFileFlag := kingpin.Flag("log", "create a detailed system log file at the given location").Short('l').OpenFile(os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	modeFlag := kingpin.Flag("mode", "access mode; one of r (read only) or r+ (read and write)").Short('m').String()
	quietFlag := kingpin.Flag("quiet", "silence all output except for command results. Overrides verbose mode").Short('q').Bool()
	scriptFileFlag := kingpin.Flag("script-file", "script(s) to execute, after which the program exits. Script files are executed in order they appear. If any command fails, this program will immediately terminate and return non-zero without executing the rest of the commands or scripts.").Short('f').ExistingFiles()
	verboseFlag := kingpin.Flag("verbose", "make output more verbose; up to 3 can be specified for increasingly verbose output").Short('v').Counter()

	kingpin.Version(currentVersion)
	kingpin.CommandLine.HelpFlag.Short('h')
	kingpin.Parse()

	interactiveMode := true
	if len(*commandFlag) > 0 || len(*scriptFileFlag) > 0 {
		// we are going into command mode, do not do interactive console
		interactiveMode = false
	}

	outVerb := verbosity.ParseFromFlags(*quietFlag, *verboseFlag)
	out := verbosity.OutputWriter{Verbosity: outVerb, AutoNewline: true}

	if *logFileFlag != nil {
		out.StartLogging(*logFileFlag)
		defer (*logFileFlag).Close()
	}
	out.Trace("Output verbosity is %s", outVerb)

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		cfg, err = config.Load(*configFlag)
		if err != nil {
			handleFatalError(err)
			return
		}
		out.Debug("Read config from %s", *configFlag)
	}

	// flags override the config file
	if *fileArg != "" {
		cfg.Path = *fileArg
	}
	if flagIsProvided("mode", "m") {
		cfg.Mode = *modeFlag
	}
	if flagIsProvided("create-dirs", "") {
		cfg.CreateDirs = *createDirsFlag
	}
	if flagIsProvided("encrypt", "e") {
		cfg.Encryption = *encryptFlag
	}
	if flagIsProvided("compress", "z") {
		cfg.Compression = *compressFlag
	}
	if flagIsProvided("key-file", "k") {
		cfg.KeyFile = *keyFileFlag
		cfg.KeyEnv = ""
	}
	if flagIsProvided("key-env", "") {
		cfg.KeyEnv = *keyEnvFlag
		cfg.KeyFile = ""
	}
	if flagIsProvided("indent", "") {
		cfg.Indent = *indentFlag
	}
	if flagIsProvided("load-timeout", "") {
		cfg.LoadTimeout = loadTimeoutFlag.String()
	}
	if flagIsProvided("history", "") {
		cfg.History = *historyFlag
	}

	if cfg.Path == "" {
		handleFatalErrorWithStatusCode(fmt.Errorf("no store file given; give one as an argument or set path in the config file"), ExitStatusArgumentsError)
		return
	}
	cfg.Path = config.ExpandHome(cfg.Path)
	if err := cfg.Validate(); err != nil {
		handleFatalError(err)
		return
	}

	if *inspectFlag {
		info, err := inspectFile(cfg.Path)
		if err != nil {
			handleFatalError(err)
			return
		}
		fmt.Println(info)
		return
	}

	var key []byte
	if cfg.Encryption {
		var err error
		if cfg.NeedsKeyPrompt() {
			key, err = promptForKey()
		} else {
			key, err = cfg.LoadKey()
		}
		if err != nil {
			handleFatalError(err)
			return
		}
	} else if cfg.KeyFile != "" || cfg.KeyEnv != "" {
		out.Warn("key source given but encryption is not enabled; ignoring")
	}

	opts, err := cfg.Options(key)
	if err != nil {
		handleFatalError(err)
		return
	}
	opts.Log = storage.NewLoggingCallbacks(out.Trace, out.Debug, out.Warn, out.ErrorCause)

	engine, err := storage.Open(cfg.Path, opts)
	if err != nil {
		handleFatalError(err)
		return
	}
	defer func() {
		if closeErr := storage.CloseAll(); closeErr != nil {
			handleFatalError(closeErr)
		}
	}()

	consoleOpts := console.Options{
		Version:     currentVersion,
		HistoryFile: cfg.History,
		Indent:      cfg.Indent,
	}

	if interactiveMode {
		console.StartPrompt(engine, out, consoleOpts)
		return
	}

	// we have scripts or commands to execute
	for idx, cmdArg := range *commandFlag {
		_, err := console.ExecuteScript(strings.NewReader(cmdArg), engine, out, consoleOpts)
		if err != nil {
			handleFatalErrorWithStatusCode(fmt.Errorf("command #%d: %w", idx+1, err), ExitStatusScriptCommandError)
			return
		}
	}
	for _, filename := range *scriptFileFlag {
		if err := runScriptFile(filename, engine, out, consoleOpts); err != nil {
			handleFatalErrorWithStatusCode(err, ExitStatusScriptCommandError)
			return
		}
	}
}

func runScriptFile(filename string, engine *storage.Engine, out verbosity.OutputWriter, opts console.Options) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("problem opening %q: %w", filename, err)
	}
	defer f.Close()

	start := time.Now()
	lines, err := console.ExecuteScript(f, engine, out, opts)
	if err != nil {
		return fmt.Errorf("%q: %w", filename, err)
	}
	out.Debug("Executed %d lines in %q in %v", lines, filename, time.Since(start))
	return nil
}

// inspectFile describes the header of the store file at path.
func inspectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrIO, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrIO, err)
	}
	if fi.Size() == 0 {
		return fmt.Sprintf("%s: empty (no document)", path), nil
	}
	h, err := codec.ReadHeader(f)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s, %d bytes", path, h, fi.Size()), nil
}

func promptForKey() ([]byte, error) {
	prompt := liner.NewLiner()
	defer prompt.Close()
	prompt.SetCtrlCAborts(true)

	key, err := prompt.PasswordPrompt("Key: ")
	if err != nil {
		return nil, fmt.Errorf("%w: could not read key: %v", storage.ErrConfig, err)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: key cannot be empty", storage.ErrConfig)
	}
	return []byte(key), nil
}

// shortValueFlags holds the short flags that take a value. Anything after one
// of them in the same argument, or the next argument, is its value.
const shortValueFlags = "Cfklm"

// longValueFlags holds the long flags that take a value.
var longValueFlags = []string{
	"command", "config", "history", "indent", "key-env", "key-file",
	"load-timeout", "log", "mode", "script-file",
}

// flagIsProvided returns whether the flag was given on the command line,
// including as --no-<longName> for boolean flags.
func flagIsProvided(longName string, shortNames string) bool {
	return flagInArgs(os.Args[1:], longName, shortNames)
}

func flagInArgs(args []string, longName string, shortNames string) bool {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if strings.HasPrefix(arg, "--") {
			name, _, hasValue := strings.Cut(arg[2:], "=")
			if name == longName || name == "no-"+longName {
				return true
			}
			if !hasValue && isLongValueFlag(name) {
				i++
			}
		} else if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			bundle := arg[1:]
			for j, ch := range bundle {
				if strings.ContainsRune(shortNames, ch) {
					return true
				}
				if strings.ContainsRune(shortValueFlags, ch) {
					if j+1 == len(bundle) {
						i++
					}
					break
				}
			}
		}
	}
	return false
}

func isLongValueFlag(name string) bool {
	for _, f := range longValueFlags {
		if f == name {
			return true
		}
	}
	return false
}

// does proper handling of error and then exits
func handleFatalError(err error) {
	handleFatalErrorWithStatusCode(err, exitStatusFor(err))
}

// does proper handling of error and then exits
func handleFatalErrorWithStatusCode(err error, retCode int) {
	// don't panic, ever. Just output the generic error message
	fmt.Fprintf(os.Stderr, "%v\n", err)
	returnCode = retCode
}

func exitStatusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrConfig):
		return ExitStatusArgumentsError
	case errors.Is(err, storage.ErrIntegrity), errors.Is(err, storage.ErrCorrupt), errors.Is(err, storage.ErrFormatMismatch):
		return ExitStatusIntegrityError
	case errors.Is(err, storage.ErrIO), errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrNotAFile),
		errors.Is(err, storage.ErrAlreadyOpen), errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return ExitStatusIOError
	default:
		return ExitStatusGenericError
	}
}
