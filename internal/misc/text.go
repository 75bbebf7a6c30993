package misc

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// WrapText wraps the given text to some width. Every run of whitespace is
// treated as a single space. Words longer than width are broken with a
// trailing hyphen.
func WrapText(text string, width int) []string {
	if width < 2 {
		width = 2
	}

	var lines []string
	var cur []rune
	for _, word := range strings.FieldsFunc(text, unicode.IsSpace) {
		w := []rune(word)
		for len(w) > 0 {
			sep := 0
			if len(cur) > 0 {
				sep = 1
			}
			if len(cur)+sep+len(w) <= width {
				if sep == 1 {
					cur = append(cur, ' ')
				}
				cur = append(cur, w...)
				w = nil
			} else if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			} else {
				lines = append(lines, string(w[:width-1])+"-")
				w = w[width-1:]
			}
		}
	}
	if len(cur) > 0 || len(lines) == 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

// Pluralize returns the plural form of the word unless the number is exactly
// 1, in which case it will return the singular form.
func Pluralize(singular string, plural string, count int) string {
	if count == 1 {
		return singular
	}
	return plural
}

// CountOf returns the number followed by either the singular or plural
// depending on the number.
func CountOf(singular string, plural string, count int) string {
	return fmt.Sprintf("%d %s", count, Pluralize(singular, plural, count))
}

// JustifyTextBlock runs a Justify on every line except for the last.
func JustifyTextBlock(text []string, width int) []string {
	justified := make([]string, len(text))
	for idx, line := range text {
		if idx+1 < len(text) {
			justified[idx] = JustifyText(line, width)
		} else {
			justified[idx] = line
		}
	}
	return justified
}

// JustifyText pads the gaps between words until the text is width runes
// long, alternating between the left and right side. Text with no spaces or
// that is already at least width long is returned unchanged.
func JustifyText(text string, width int) string {
	length := utf8.RuneCountInString(text)
	words := strings.Split(text, " ")
	gaps := len(words) - 1
	if length >= width || gaps < 1 {
		return text
	}

	pads := make([]int, gaps)
	left, right := 0, gaps-1
	for i := 0; i < width-length; i++ {
		if i%2 == 0 {
			pads[left]++
			left = (left + 1) % gaps
		} else {
			pads[right]++
			right = (right - 1 + gaps) % gaps
		}
	}

	var sb strings.Builder
	for idx, word := range words {
		sb.WriteString(word)
		if idx < gaps {
			sb.WriteString(strings.Repeat(" ", 1+pads[idx]))
		}
	}
	return sb.String()
}

// PadRight pads s with spaces until it is width runes long.
func PadRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
