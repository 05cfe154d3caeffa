package domain

// SubmissionStatus represents the lifecycle state of a judged submission.
type SubmissionStatus string

const (
	StatusPending             SubmissionStatus = "PENDING"
	StatusCompiling           SubmissionStatus = "COMPILING"
	StatusRunning             SubmissionStatus = "RUNNING"
	StatusAccepted            SubmissionStatus = "ACCEPTED"
	StatusWrongAnswer         SubmissionStatus = "WRONG_ANSWER"
	StatusTimeLimitExceeded   SubmissionStatus = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded SubmissionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusRuntimeError        SubmissionStatus = "RUNTIME_ERROR"
	StatusCompileError        SubmissionStatus = "COMPILE_ERROR"
	StatusPresentationError   SubmissionStatus = "PRESENTATION_ERROR"
	StatusSystemError         SubmissionStatus = "SYSTEM_ERROR"
)

// IsTerminal returns true if the status represents a final state.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded,
		StatusMemoryLimitExceeded, StatusRuntimeError, StatusCompileError,
		StatusPresentationError, StatusSystemError:
		return true
	}
	return false
}

// Language represents a supported programming language.
type Language string

const (
	LangC          Language = "c"
	LangCpp        Language = "cpp"
	LangJava       Language = "java"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangGo         Language = "go"
	LangCSharp     Language = "csharp"
)

type languageTraits struct {
	sourceFile string
	compiled   bool
}

var languages = map[Language]languageTraits{
	LangC:          {sourceFile: "main.c", compiled: true},
	LangCpp:        {sourceFile: "main.cpp", compiled: true},
	LangJava:       {sourceFile: "Main.java", compiled: true},
	LangPython:     {sourceFile: "main.py", compiled: false},
	LangJavaScript: {sourceFile: "main.js", compiled: false},
	LangGo:         {sourceFile: "main.go", compiled: true},
	LangCSharp:     {sourceFile: "Main.cs", compiled: true},
}

// AllLanguages lists every language known at build time, in a stable order.
func AllLanguages() []Language {
	return []Language{LangC, LangCpp, LangJava, LangPython, LangJavaScript, LangGo, LangCSharp}
}

// IsValid checks if the language is one of the known languages.
func (l Language) IsValid() bool {
	_, ok := languages[l]
	return ok
}

// SourceFileName is the canonical file name the source is written to.
func (l Language) SourceFileName() string {
	return languages[l].sourceFile
}

// NeedsCompilation reports whether the language has a real compile step.
func (l Language) NeedsCompilation() bool {
	return languages[l].compiled
}
