// Package player turns a resolved stream into a running external player
// process. The player is configured as a command template and otherwise
// opaque: the launcher substitutes placeholders, spawns the process detached
// and never looks at it again.
package player

import (
	"errors"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/aniterm/aniterm/logger"
	"github.com/aniterm/aniterm/types"
)

var errEmptyTemplate = errors.New("empty player command template")

// DefaultTemplate returns the platform default player command. Desktop
// platforms get mpv; android gets an intent-based opener since there is no
// usable terminal player there.
func DefaultTemplate() string {
	if runtime.GOOS == "android" {
		return "am start --user 0 -a android.intent.action.VIEW -d {url} -n is.xyz.mpv/is.xyz.mpv.MPVActivity"
	}
	return "mpv --force-media-title={title} --referrer={referer} --user-agent={user_agent} {url}"
}

// Validate reports whether template can be used at all. Called once at
// startup so a broken configuration fails the process before any UI runs.
func Validate(template string) error {
	tokens, err := shellquote.Split(template)
	if err != nil {
		return &types.LaunchError{Template: template, Err: err}
	}
	if len(tokens) == 0 {
		return &types.LaunchError{Template: template, Err: errEmptyTemplate}
	}
	return nil
}

// starter spawns argv detached and returns the pid. Swapped out in tests.
type starter func(argv []string) (int, error)

// Launcher launches streams with one fixed command template.
type Launcher struct {
	template string
	start    starter
}

func NewLauncher(template string) *Launcher {
	return &Launcher{template: template, start: spawn}
}

// Launch substitutes the stream into the template and starts the player as a
// detached process. It returns as soon as the process is running; the player
// owns its own lifecycle from then on.
func (l *Launcher) Launch(stream *types.Stream, title string) (int, error) {
	argv, err := l.Argv(stream, title)
	if err != nil {
		return 0, err
	}

	logger.Debug("launching player", "argv", strings.Join(argv, " "))
	pid, err := l.start(argv)
	if err != nil {
		return 0, &types.LaunchError{Template: l.template, Err: err}
	}
	return pid, nil
}

// Argv builds the final command line. The template is lexed first and the
// placeholders substituted per token, so values never get re-interpreted as
// shell words. Placeholders whose field is absent substitute to the empty
// string; placeholders missing from the template are simply never consulted.
func (l *Launcher) Argv(stream *types.Stream, title string) ([]string, error) {
	tokens, err := shellquote.Split(l.template)
	if err != nil {
		return nil, &types.LaunchError{Template: l.template, Err: err}
	}
	if len(tokens) == 0 {
		return nil, &types.LaunchError{Template: l.template, Err: errEmptyTemplate}
	}

	replacer := strings.NewReplacer(
		"{url}", stream.URL,
		"{user_agent}", stream.UserAgent,
		"{referer}", stream.Referer,
		"{title}", title,
		"{headers}", headerFields(stream.Headers),
	)

	argv := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		sub := replacer.Replace(tok)
		if sub == "" && tok != "" {
			// A token that was nothing but an empty placeholder would
			// confuse most players; drop it.
			continue
		}
		argv = append(argv, sub)
	}
	if len(argv) == 0 {
		// Every token was an absent optional placeholder.
		return nil, &types.LaunchError{Template: l.template, Err: errEmptyTemplate}
	}
	return argv, nil
}

// headerFields renders extra headers the way mpv's --http-header-fields
// expects them.
func headerFields(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+headers[k])
	}
	return strings.Join(parts, ",")
}

func spawn(argv []string) (int, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(path, argv[1:]...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	// Detach: we never wait, the player outlives our interest in it.
	if err := cmd.Process.Release(); err != nil {
		return pid, err
	}
	return pid, nil
}
