package profile

import "strings"

// Scaffold completes a bare code fragment into a runnable program for
// languages whose toolchains demand a fixed entry point. Completion is best
// effort: a fragment that needs imports beyond what the wrapper provides
// still fails to compile, and the compiler message comes back to the caller
// as-is. Complete programs pass through untouched.
func Scaffold(languageID, code string) string {
	switch languageID {
	case "go":
		return scaffoldGo(code)
	case "java":
		return scaffoldJava(code)
	default:
		return code
	}
}

func scaffoldGo(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	if strings.Contains(code, "func main(") {
		return "package main\n\n" + code
	}

	// Statement-level fragment. The recover harness keeps panics on stderr
	// with a nonzero exit instead of a bare runtime trace, and it is also
	// what makes the fmt and os imports safe to inject unconditionally.
	var b strings.Builder
	b.WriteString("package main\n\n")
	b.WriteString("import (\n\t\"fmt\"\n\t\"os\"\n)\n\n")
	b.WriteString("func main() {\n")
	b.WriteString("\tdefer func() {\n")
	b.WriteString("\t\tif r := recover(); r != nil {\n")
	b.WriteString("\t\t\tfmt.Fprintln(os.Stderr, r)\n")
	b.WriteString("\t\t\tos.Exit(1)\n")
	b.WriteString("\t\t}\n")
	b.WriteString("\t}()\n")
	writeIndented(&b, code, "\t")
	b.WriteString("}\n")
	return b.String()
}

func scaffoldJava(code string) string {
	if strings.Contains(code, "class ") && strings.Contains(code, "static void main") {
		return code
	}

	// Unused imports are legal in Java, so the wrapper can offer the common
	// standard packages to every fragment.
	var b strings.Builder
	b.WriteString("import java.io.*;\n")
	b.WriteString("import java.util.*;\n")
	b.WriteString("import java.math.*;\n")
	b.WriteString("import java.text.*;\n")
	b.WriteString("import java.time.*;\n")
	b.WriteString("import java.util.regex.*;\n\n")
	b.WriteString("public class Main {\n")
	b.WriteString("    public static void main(String[] args) {\n")
	writeIndented(&b, code, "        ")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}

func writeIndented(b *strings.Builder, code, indent string) {
	for _, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
}
