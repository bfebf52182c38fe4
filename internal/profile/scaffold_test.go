package profile

import (
	"strings"
	"testing"
)

func TestScaffoldGo(t *testing.T) {
	t.Run("complete program untouched", func(t *testing.T) {
		code := "package main\n\nfunc main() {}\n"
		if got := Scaffold("go", code); got != code {
			t.Errorf("Scaffold changed a complete program:\n%s", got)
		}
	})

	t.Run("main function gets package clause", func(t *testing.T) {
		code := "import \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}"
		got := Scaffold("go", code)
		if !strings.HasPrefix(got, "package main\n") {
			t.Errorf("scaffolded code missing package clause:\n%s", got)
		}
		if !strings.Contains(got, code) {
			t.Errorf("scaffolded code lost the original fragment:\n%s", got)
		}
	})

	t.Run("fragment wrapped in main", func(t *testing.T) {
		got := Scaffold("go", "x := 21\nfmt.Println(x * 2)")
		for _, want := range []string{
			"package main",
			"func main() {",
			"\tx := 21",
			"\tfmt.Println(x * 2)",
			"recover()",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("scaffolded fragment missing %q:\n%s", want, got)
			}
		}
	})
}

func TestScaffoldJava(t *testing.T) {
	t.Run("complete class untouched", func(t *testing.T) {
		code := "public class Main {\n    public static void main(String[] args) {}\n}"
		if got := Scaffold("java", code); got != code {
			t.Errorf("Scaffold changed a complete class:\n%s", got)
		}
	})

	t.Run("fragment wrapped in Main", func(t *testing.T) {
		got := Scaffold("java", "int x = 21;\nSystem.out.println(x * 2);")
		for _, want := range []string{
			"import java.util.*;",
			"public class Main {",
			"public static void main(String[] args) {",
			"        int x = 21;",
			"        System.out.println(x * 2);",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("scaffolded fragment missing %q:\n%s", want, got)
			}
		}
	})
}

func TestScaffoldOtherLanguagesPassThrough(t *testing.T) {
	code := "print('hi')"
	for _, language := range []string{"python", "javascript", "typescript", "cpp", "rust"} {
		if got := Scaffold(language, code); got != code {
			t.Errorf("Scaffold(%q) changed the code: %q", language, got)
		}
	}
}
