// Package profile defines the language profiles the execution engine can
// provision, together with the registry that resolves request language IDs
// against them.
package profile

// Profile describes how one language is provisioned, compiled, and run.
//
// CompileCmd, RunCmd, and CheckCmd are shell-style templates. {src} expands
// to ArtifactFile and {bin} to BinFile; both are relative to the sandbox
// working area, which is also the working directory of every command. Env
// entries may reference {dir}, which backends expand to the absolute working
// area path at provision time.
//
// Sandboxes never get network access. There is deliberately no knob for it.
type Profile struct {
	ID           string
	Name         string
	Version      string
	Extension    string
	ArtifactFile string // fixed source file name inside the working area
	BinFile      string // compiled artifact name, empty for interpreted languages
	CompileCmd   string // empty for interpreted languages
	RunCmd       string
	CheckCmd     string // syntax-only check, empty when handled natively
	Image        string // container image for the docker backend
	MemoryMB     int
	CPU          float64
	Env          []string
	BackendURL   string // non-empty routes execution to a remote executor service
	Template     string // starter snippet served to catalog consumers
	Libraries    []string
}

// Compiled reports whether the profile has a compile phase.
func (p Profile) Compiled() bool { return p.CompileCmd != "" }

// Defaults returns the built-in language catalog. Callers get a fresh slice
// on every call so registry overrides never leak between instances.
func Defaults() []Profile {
	return []Profile{
		{
			ID:           "python",
			Name:         "Python",
			Version:      "3.12",
			Extension:    "py",
			ArtifactFile: "main.py",
			RunCmd:       "python3 {src}",
			CheckCmd:     "python3 -m py_compile {src}",
			Image:        "python:3.12-alpine",
			MemoryMB:     128,
			CPU:          0.5,
			Env:          []string{"PYTHONUNBUFFERED=1", "PYTHONDONTWRITEBYTECODE=1"},
			Template: `# Python Example
def greet(name):
    return f"Hello, {name}!"

print(greet("World"))`,
			Libraries: []string{
				"builtins", "sys", "os", "math", "random", "json", "datetime",
				"collections", "itertools", "functools", "operator", "string",
				"re", "time", "calendar", "hashlib", "base64", "urllib", "http",
			},
		},
		{
			ID:           "javascript",
			Name:         "JavaScript",
			Version:      "Node.js 22",
			Extension:    "js",
			ArtifactFile: "main.js",
			RunCmd:       "node {src}",
			CheckCmd:     "node --check {src}",
			Image:        "node:22-alpine",
			MemoryMB:     128,
			CPU:          0.5,
			Template: `// JavaScript Example
function greet(name) {
    return ` + "`Hello, ${name}!`" + `;
}

console.log(greet("World"));`,
			Libraries: []string{
				"assert", "buffer", "crypto", "events", "fs", "path",
				"querystring", "stream", "url", "util", "zlib",
			},
		},
		{
			ID:           "typescript",
			Name:         "TypeScript",
			Version:      "5.0",
			Extension:    "ts",
			ArtifactFile: "main.ts",
			BinFile:      "main.js",
			CompileCmd:   "tsc {src}",
			RunCmd:       "node {bin}",
			CheckCmd:     "tsc --noEmit {src}",
			// The stock node image ships without tsc; point this at an image
			// that bundles the typescript package when running locally.
			Image:    "node:22-alpine",
			MemoryMB: 128,
			CPU:      0.5,
			Template: `// TypeScript Example
function greet(name: string): string {
    return ` + "`Hello, ${name}!`" + `;
}

console.log(greet("World"));`,
			Libraries: []string{
				"assert", "buffer", "crypto", "events", "fs", "path",
				"querystring", "stream", "url", "util", "zlib",
			},
		},
		{
			ID:           "java",
			Name:         "Java",
			Version:      "OpenJDK 17",
			Extension:    "java",
			ArtifactFile: "Main.java",
			BinFile:      "Main",
			CompileCmd:   "javac {src}",
			RunCmd:       "java {bin}",
			CheckCmd:     "javac {src}",
			Image:        "eclipse-temurin:17-jdk-alpine",
			MemoryMB:     256,
			CPU:          0.5,
			Template: `// Java Example
public class Main {
    public static void main(String[] args) {
        System.out.println("Hello, World!");
    }
}`,
			Libraries: []string{
				"java.lang.*", "java.util.*", "java.io.*", "java.math.*",
				"java.text.*", "java.time.*", "java.util.regex.*",
			},
		},
		{
			ID:           "cpp",
			Name:         "C++",
			Version:      "GCC 13",
			Extension:    "cpp",
			ArtifactFile: "main.cpp",
			BinFile:      "main",
			CompileCmd:   "g++ -o {bin} {src}",
			RunCmd:       "./{bin}",
			CheckCmd:     "g++ -fsyntax-only {src}",
			Image:        "gcc:13",
			MemoryMB:     128,
			CPU:          0.5,
			Template: `// C++ Example
#include <iostream>
using namespace std;

int main() {
    cout << "Hello, World!" << endl;
    return 0;
}`,
			Libraries: []string{
				"iostream", "string", "vector", "algorithm", "cmath",
				"cstdlib", "climits", "ctime", "map", "set", "queue",
				"stack", "deque", "list", "bitset", "utility",
			},
		},
		{
			ID:           "go",
			Name:         "Go",
			Version:      "1.23",
			Extension:    "go",
			ArtifactFile: "main.go",
			BinFile:      "main",
			CompileCmd:   "go build -o {bin} {src}",
			RunCmd:       "./{bin}",
			Image:        "golang:1.23-alpine",
			MemoryMB:     256,
			CPU:          0.5,
			Env:          []string{"GOCACHE={dir}/.cache", "GOPATH={dir}/go", "GO111MODULE=auto", "CGO_ENABLED=0"},
			Template: `// Go Example
package main

import "fmt"

func main() {
    fmt.Println("Hello, World!")
}`,
			Libraries: []string{
				"fmt", "os", "strings", "strconv", "math", "sort",
				"time", "bufio", "bytes", "io", "regexp", "unicode",
				"crypto/*", "encoding/*", "path/filepath", "runtime",
			},
		},
		{
			ID:           "rust",
			Name:         "Rust",
			Version:      "1.82",
			Extension:    "rs",
			ArtifactFile: "main.rs",
			BinFile:      "main",
			CompileCmd:   "rustc {src}",
			RunCmd:       "./{bin}",
			CheckCmd:     "rustc --emit=metadata {src}",
			Image:        "rust:1.82-alpine",
			MemoryMB:     256,
			CPU:          0.5,
			Template: `// Rust Example
fn main() {
    println!("Hello, World!");
}`,
			Libraries: []string{
				"std::io", "std::collections", "std::time",
				"std::thread", "std::fs", "std::path",
			},
		},
	}
}
