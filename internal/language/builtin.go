package language

import (
	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

// DefaultImage is the unified toolchain image used when none is configured.
const DefaultImage = "judge-toolchain:latest"

// Options customises the built-in strategies.
type Options struct {
	// DefaultImage applies to languages without an entry in Images.
	DefaultImage string
	Images       map[domain.Language]string
	// Flags replaces the default compiler flags of a language.
	Flags map[domain.Language][]string
}

var defaultFlags = map[domain.Language][]string{
	domain.LangC:      {"-std=c11", "-O2", "-Wall", "-lm"},
	domain.LangCpp:    {"-std=c++17", "-O2", "-Wall"},
	domain.LangJava:   {"-encoding", "UTF-8"},
	domain.LangGo:     {"-trimpath"},
	domain.LangCSharp: {"-optimize+"},
}

// DefaultFlags returns the compiler flags used when none are configured.
func DefaultFlags(lang domain.Language) []string {
	return append([]string(nil), defaultFlags[lang]...)
}

// Builtin returns one strategy per language in domain.AllLanguages order.
func Builtin(opts Options) []Strategy {
	image := opts.DefaultImage
	if image == "" {
		image = DefaultImage
	}

	var out []Strategy
	for _, lang := range domain.AllLanguages() {
		s := definition(lang)
		s.image = image
		if img, ok := opts.Images[lang]; ok && img != "" {
			s.image = img
		}
		s.flags = DefaultFlags(lang)
		if flags, ok := opts.Flags[lang]; ok {
			s.flags = append([]string(nil), flags...)
		}
		out = append(out, s)
	}
	return out
}

func definition(lang domain.Language) Strategy {
	switch lang {
	case domain.LangC:
		return Strategy{
			lang:     lang,
			artifact: "main",
			compile: func(ws string, flags []string) []string {
				args := []string{"gcc", "-o", in(ws, "main"), in(ws, "main.c")}
				return append(args, flags...)
			},
			run: func(ws string) []string { return []string{in(ws, "main")} },
		}
	case domain.LangCpp:
		return Strategy{
			lang:     lang,
			artifact: "main",
			compile: func(ws string, flags []string) []string {
				args := []string{"g++", "-o", in(ws, "main"), in(ws, "main.cpp")}
				return append(args, flags...)
			},
			run: func(ws string) []string { return []string{in(ws, "main")} },
		}
	case domain.LangJava:
		return Strategy{
			lang:     lang,
			artifact: "Main.class",
			compile: func(ws string, flags []string) []string {
				args := []string{"javac", "-d", ws}
				args = append(args, flags...)
				return append(args, in(ws, "Main.java"))
			},
			run: func(ws string) []string {
				return []string{"java", "-XX:+UseSerialGC", "-Xss64m", "-cp", ws, "Main"}
			},
		}
	case domain.LangPython:
		return Strategy{
			lang:     lang,
			artifact: "main.py",
			check: func(ws string) []string {
				return []string{"python3", "-m", "py_compile", in(ws, "main.py")}
			},
			run: func(ws string) []string { return []string{"python3", in(ws, "main.py")} },
		}
	case domain.LangJavaScript:
		return Strategy{
			lang:     lang,
			artifact: "main.js",
			check: func(ws string) []string {
				return []string{"node", "--check", in(ws, "main.js")}
			},
			run: func(ws string) []string { return []string{"node", in(ws, "main.js")} },
		}
	case domain.LangGo:
		return Strategy{
			lang:     lang,
			artifact: "main",
			env:      []string{"GOCACHE=/tmp/gocache", "GOPATH=/tmp/gopath", "HOME=/tmp", "CGO_ENABLED=0", "GO111MODULE=off"},
			compile: func(ws string, flags []string) []string {
				args := []string{"go", "build", "-o", in(ws, "main")}
				args = append(args, flags...)
				return append(args, in(ws, "main.go"))
			},
			run: func(ws string) []string { return []string{in(ws, "main")} },
		}
	case domain.LangCSharp:
		return Strategy{
			lang:     lang,
			artifact: "main.exe",
			compile: func(ws string, flags []string) []string {
				args := []string{"mcs", "-out:" + in(ws, "main.exe")}
				args = append(args, flags...)
				return append(args, in(ws, "Main.cs"))
			},
			run: func(ws string) []string { return []string{"mono", in(ws, "main.exe")} },
		}
	}
	panic("language: no definition for " + string(lang))
}
