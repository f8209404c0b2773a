package events

const KindCommandRecognized Kind = "command.recognized"

// CommandRecognized reports a voice command. Command is one of "quit",
// "reset" or "stop".
type CommandRecognized struct {
	Base
	Command    string
	Transcript string
}

func NewCommandRecognized(turn int, command, transcript string) CommandRecognized {
	return CommandRecognized{Base: NewBase(KindCommandRecognized, turn), Command: command, Transcript: transcript}
}
