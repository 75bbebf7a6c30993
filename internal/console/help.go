package console

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"dekarrin/sealdoc/internal/misc"
)

const (
	helpWidth      = 80
	helpNameSuffix = "- "
)

const helpFooter = `Paths are dotted, as in servers.0.host, where numeric parts index into
lists; a path of . is the whole document. Values given to SET are JSON, so
strings must be quoted. A statement with an unclosed quote or bracket
continues on the next line. Changes are written to the file in the
background; use SAVE to wait for them.`

func showHelp(topic string) string {
	var sb strings.Builder

	if topic != "" {
		name := strings.ToUpper(topic)
		cmd, ok := commands[name]
		if !ok {
			return fmt.Sprintf("Unknown command %q; try just HELP for a list of commands", topic)
		}
		if cmd.aliasFor != "" {
			name = cmd.aliasFor
		}
		leftColumnWidth := utf8.RuneCountInString(buildHelpCommandName(name)) + utf8.RuneCountInString(helpNameSuffix)
		writeHelpForCommand(name, &sb, descWidthFor(leftColumnWidth), leftColumnWidth)
		return strings.TrimSuffix(sb.String(), "\n")
	}

	leftColumnWidth := 0
	for name, c := range commands {
		if c.aliasFor != "" {
			continue
		}
		if n := utf8.RuneCountInString(buildHelpCommandName(name)); n > leftColumnWidth {
			leftColumnWidth = n
		}
	}
	leftColumnWidth += utf8.RuneCountInString(helpNameSuffix)
	descWidth := descWidthFor(leftColumnWidth)

	sb.WriteString("Commands:\n")
	for _, name := range commands.names() {
		if commands[name].aliasFor != "" {
			continue
		}
		// these come at the end
		if name == "HELP" || name == "EXIT" {
			continue
		}
		writeHelpForCommand(name, &sb, descWidth, leftColumnWidth)
	}
	writeHelpForCommand("HELP", &sb, descWidth, leftColumnWidth)
	writeHelpForCommand("EXIT", &sb, descWidth, leftColumnWidth)

	footer := misc.JustifyTextBlock(misc.WrapText(helpFooter, helpWidth), helpWidth)
	sb.WriteString(strings.Join(footer, "\n"))
	return sb.String()
}

func descWidthFor(leftColumnWidth int) int {
	if w := helpWidth - leftColumnWidth; w >= 20 {
		return w
	}
	return 20
}

func buildHelpCommandName(name string) string {
	c := commands[name]
	colName := strings.Join(commands.getAllAliasesOf(name), "/") + " "
	if c.helpInvoke != "" {
		colName += c.helpInvoke + " "
	}
	return colName
}

func writeHelpForCommand(name string, sb *strings.Builder, descWidth int, leftColumnWidth int) {
	helpDescLines := misc.WrapText(commands[name].helpDesc, descWidth)
	helpDescLines = misc.JustifyTextBlock(helpDescLines, descWidth)

	cmdName := buildHelpCommandName(name)
	sb.WriteString(misc.PadRight(cmdName, leftColumnWidth-utf8.RuneCountInString(helpNameSuffix)))
	sb.WriteString(helpNameSuffix)
	sb.WriteString(helpDescLines[0])
	sb.WriteRune('\n')
	for _, line := range helpDescLines[1:] {
		sb.WriteString(strings.Repeat(" ", leftColumnWidth))
		sb.WriteString(line)
		sb.WriteRune('\n')
	}
	sb.WriteRune('\n')
}
