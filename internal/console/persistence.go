package console

import (
	"fmt"
	"os"
	"path/filepath"

	"dekarrin/sealdoc/internal/config"
)

const (
	appDirName       = ".sealdoc"
	historyFileName  = "history"
	historyFilePerms = 0600
)

func (state *consoleState) loadHistFile() {
	path, err := state.histFilePath()
	if err != nil {
		state.out.Warn("%v\n", err)
		return
	}
	state.usingHistFile = true

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return
	} else if err != nil {
		state.out.Warn("couldn't open %s; history will be limited to this session: %v\n", path, err)
		state.usingHistFile = false
		return
	}
	defer f.Close()

	if _, err := state.prompt.ReadHistory(f); err != nil {
		state.out.Warn("couldn't read history file: %v\n", err)
	}
}

func (state *consoleState) writeHistFile() {
	if !state.usingHistFile {
		return
	}
	path, err := state.histFilePath()
	if err != nil {
		state.out.Warn("%v\n", err)
		state.usingHistFile = false
		return
	}

	// history can hold SET values, so keep it private.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, historyFilePerms)
	if err != nil {
		state.out.Warn("couldn't create %s; history will be limited to this session: %v\n", path, err)
		state.usingHistFile = false
		return
	}
	defer f.Close()

	if _, err := state.prompt.WriteHistory(f); err != nil {
		state.out.Warn("couldn't write history file: %v\n", err)
		state.usingHistFile = false
	}
}

// histFilePath gives the history file to use, creating ~/.sealdoc if the
// default is used.
func (state *consoleState) histFilePath() (string, error) {
	if state.histFile != "" {
		return config.ExpandHome(state.histFile), nil
	}

	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("couldn't get homedir; history will be limited to this session: %v", err)
	}
	appDir := filepath.Join(homedir, appDirName)
	if err := os.Mkdir(appDir, 0700); err != nil && !os.IsExist(err) {
		return "", fmt.Errorf("couldn't create ~/%s; history will be limited to this session: %v", appDirName, err)
	}
	return filepath.Join(appDir, historyFileName), nil
}
