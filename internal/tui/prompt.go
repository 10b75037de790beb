package tui

import (
	"unicode/utf8"
)

// prompt is a one-line editor shown in the footer.
type prompt struct {
	label    string
	buf      []rune
	masked   bool
	onSubmit func(string)
}

func newPrompt(label, initial string, onSubmit func(string)) *prompt {
	return &prompt{label: label, buf: []rune(initial), onSubmit: onSubmit}
}

// handle consumes one key and reports whether the prompt is finished.
func (p *prompt) handle(id string) bool {
	switch id {
	case "<Enter>":
		p.onSubmit(string(p.buf))
		return true
	case "<Escape>", "<C-c>":
		return true
	case "<Backspace>", "<C-<Backspace>>":
		if len(p.buf) > 0 {
			p.buf = p.buf[:len(p.buf)-1]
		}
	case "<C-u>":
		p.buf = p.buf[:0]
	case "<Space>":
		p.buf = append(p.buf, ' ')
	case "<Tab>":
		p.buf = append(p.buf, ',')
	default:
		if utf8.RuneCountInString(id) == 1 {
			p.buf = append(p.buf, []rune(id)...)
		}
	}
	return false
}

func (p *prompt) text() string {
	shown := string(p.buf)
	if p.masked {
		shown = maskKey(shown)
	}
	return p.label + ": " + shown + "_"
}

// maskKey keeps the last four characters of a secret visible.
func maskKey(key string) string {
	runes := []rune(key)
	if len(runes) <= 4 {
		return string(runes)
	}
	masked := make([]rune, len(runes))
	for i := range runes {
		if i < len(runes)-4 {
			masked[i] = '*'
		} else {
			masked[i] = runes[i]
		}
	}
	return string(masked)
}
