package profile

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// BuildCommand expands a command template against the profile's file names
// and splits it into argv form. Quoting follows shell rules, so templates
// like `g++ -o {bin} {src}` and flag values with spaces both work.
func BuildCommand(tpl string, p Profile) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, fmt.Errorf("command template is empty")
	}
	expanded := strings.ReplaceAll(tpl, "{src}", p.ArtifactFile)
	expanded = strings.ReplaceAll(expanded, "{bin}", p.BinFile)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("parse command template %q: %w", tpl, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command template %q expands to nothing", tpl)
	}
	return fields, nil
}

// Commands builds the compile and run argv for the profile. The compile
// slice is nil for interpreted languages.
func (p Profile) Commands() (compileCmd, runCmd []string, err error) {
	if p.CompileCmd != "" {
		compileCmd, err = BuildCommand(p.CompileCmd, p)
		if err != nil {
			return nil, nil, err
		}
	}
	runCmd, err = BuildCommand(p.RunCmd, p)
	if err != nil {
		return nil, nil, err
	}
	return compileCmd, runCmd, nil
}
