package assistant

import "github.com/google/uuid"

// Session scopes conversational context across prompts. A reset replaces it
// with a new one; it is never changed in place.
type Session struct {
	ID               string
	WorkingDirectory string
	Model            string
}

func newSession(config Config, previous string) Session {
	id := uuid.NewString()
	for id == previous {
		id = uuid.NewString()
	}
	return Session{
		ID:               id,
		WorkingDirectory: config.WorkingDirectory,
		Model:            config.Model,
	}
}

// args builds the assistant command line for one prompt. The first prompt of
// a session creates it and later prompts resume it.
func args(config Config, session Session, resume bool, prompt string) []string {
	args := append([]string{}, config.Args...)
	args = append(args,
		"-p",
		"--output-format", "stream-json",
		"--verbose",
		"--model", session.Model,
	)
	if resume {
		args = append(args, "--resume", session.ID)
	} else {
		args = append(args, "--session-id", session.ID)
	}
	if config.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	return append(args, prompt)
}
