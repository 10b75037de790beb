package session

type Level int

const (
	LevelInfo Level = iota + 1
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return ""
	}
}

// Notice is the status line text produced by an action or event. The zero
// value means there is nothing to show.
type Notice struct {
	Level Level
	Text  string
}

func (n Notice) Empty() bool { return n.Text == "" }

func info(text string) Notice   { return Notice{Level: LevelInfo, Text: text} }
func warn(text string) Notice   { return Notice{Level: LevelWarn, Text: text} }
func failed(text string) Notice { return Notice{Level: LevelError, Text: text} }
