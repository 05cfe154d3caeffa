// Package language maps each supported language to the command lines used to
// compile and run a submission inside the sandbox. Strategies perform no I/O.
package language

import (
	"path"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

// Strategy describes how one language is compiled and executed.
// All paths it produces are sandbox paths rooted at the workspace argument.
type Strategy struct {
	lang     domain.Language
	image    string
	artifact string
	flags    []string
	env      []string
	compile  func(ws string, flags []string) []string
	check    func(ws string) []string
	run      func(ws string) []string
}

// Language returns the language this strategy serves.
func (s Strategy) Language() domain.Language { return s.lang }

// Image returns the sandbox image holding the toolchain.
func (s Strategy) Image() string { return s.image }

// Flags returns the compiler flags in effect.
func (s Strategy) Flags() []string { return append([]string(nil), s.flags...) }

// SourceFileName returns the file name the source code is written to.
func (s Strategy) SourceFileName() string { return s.lang.SourceFileName() }

// ArtifactName returns the executable name, or the source file for
// interpreted languages.
func (s Strategy) ArtifactName() string { return s.artifact }

// NeedsCompilation reports whether a real compile step exists.
func (s Strategy) NeedsCompilation() bool { return s.compile != nil }

// CompileInvocation returns the compile command. ok is false for
// interpreted languages.
func (s Strategy) CompileInvocation(ws string) (cmd domain.Command, ok bool) {
	if s.compile == nil {
		return domain.Command{}, false
	}
	return s.command(s.compile(ws, s.flags)), true
}

// SyntaxCheckInvocation returns the pre-execution syntax check used by
// interpreted languages. ok is false when the language has none.
func (s Strategy) SyntaxCheckInvocation(ws string) (cmd domain.Command, ok bool) {
	if s.check == nil {
		return domain.Command{}, false
	}
	return s.command(s.check(ws)), true
}

// RunInvocation returns the command that executes the program, reading
// stdin and writing stdout.
func (s Strategy) RunInvocation(ws string) domain.Command {
	return s.command(s.run(ws))
}

func (s Strategy) command(args []string) domain.Command {
	return domain.Command{
		Args: args,
		Env:  append([]string(nil), s.env...),
	}
}

func in(ws, name string) string {
	return path.Join(ws, name)
}
