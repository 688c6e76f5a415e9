package cli

import (
	"fmt"
	"io"
	"strings"
)

// FlagCompletion describes a CLI flag for shell completion generation.
type FlagCompletion struct {
	Long      string   // long name without "--"
	Short     string   // short name without "-"
	Help      string   // description text
	Values    []string // suggested values, nil for booleans or free-form values
	ValueName string   // value label for zsh, empty for booleans
	IsFile    bool     // value is a path
}

// flagRegistry lists every flag accepted by procmon. All generators read it,
// so a new flag only needs an entry here.
var flagRegistry = []FlagCompletion{
	{Long: "help", Short: "h", Help: "Show help message"},
	{Long: "version", Short: "V", Help: "Show version information"},
	{Long: "output", Short: "o", Help: "CSV log destination", IsFile: true, ValueName: "file"},
	{Long: "interval", Short: "i", Help: "Sampling interval", Values: []string{"250ms", "500ms", "1s", "2s", "5s", "10s"}, ValueName: "duration"},
	{Long: "fsync", Help: "Flush each row to stable storage"},
	{Long: "metrics-addr", Help: "Serve /metrics, /health and /status on this address", Values: []string{":9090", "127.0.0.1:9090"}, ValueName: "addr"},
	{Long: "tui", Help: "Show the live dashboard"},
	{Long: "quiet", Short: "q", Help: "Only log warnings and errors"},
	{Long: "verbose", Short: "v", Help: "Log every sample"},
	{Long: "log-format", Help: "Log output format", Values: []string{"console", "json"}, ValueName: "format"},
	{Long: "no-color", Help: "Disable colored output"},
	{Long: "config", Help: "YAML configuration file", IsFile: true, ValueName: "file"},
	{Long: "completion", Help: "Generate completion script", Values: []string{"bash", "zsh", "fish"}, ValueName: "shell"},
}

// Flags returns a copy of the flag registry.
func Flags() []FlagCompletion {
	return append([]FlagCompletion(nil), flagRegistry...)
}

// GenerateCompletion writes a completion script for shell ("bash", "zsh" or
// "fish") to out.
func GenerateCompletion(out io.Writer, program, shell string) error {
	var script string
	switch shell {
	case "bash":
		script = bashCompletion(program)
	case "zsh":
		script = zshCompletion(program)
	case "fish":
		script = fishCompletion(program)
	default:
		return fmt.Errorf("unsupported shell: %s (accepted values: bash, zsh, fish)", shell)
	}
	if _, err := io.WriteString(out, script); err != nil {
		return fmt.Errorf("completion %s generation failed: %w", shell, err)
	}
	return nil
}

// funcName turns a program name into a valid shell identifier.
func funcName(program string) string {
	return "_" + strings.NewReplacer("-", "_", ".", "_").Replace(program)
}

func bashCompletion(program string) string {
	var opts, files []string
	var cases strings.Builder
	for _, f := range flagRegistry {
		var names []string
		if f.Long != "" {
			names = append(names, "--"+f.Long)
		}
		if f.Short != "" {
			names = append(names, "-"+f.Short)
		}
		opts = append(opts, names...)

		switch {
		case f.IsFile:
			files = append(files, names...)
		case len(f.Values) > 0:
			fmt.Fprintf(&cases, "        %s)\n            COMPREPLY=( $(compgen -W %q -- \"${cur}\") )\n            return 0\n            ;;\n",
				strings.Join(names, "|"), strings.Join(f.Values, " "))
		}
	}
	if len(files) > 0 {
		fmt.Fprintf(&cases, "        %s)\n            COMPREPLY=( $(compgen -f -- \"${cur}\") )\n            return 0\n            ;;\n",
			strings.Join(files, "|"))
	}

	fn := funcName(program) + "_completions"
	return fmt.Sprintf(`# Bash completion script for %[1]s
# Add this to your ~/.bashrc or ~/.bash_completion

%[2]s() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    opts="%[3]s"

    case "${prev}" in
%[4]s    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=( $(compgen -W "${opts}" -- "${cur}") )
        return 0
    fi

    # PID positional argument
    COMPREPLY=( $(compgen -W "$(ps -eo pid= 2>/dev/null)" -- "${cur}") )
}

complete -F %[2]s %[1]s
`, program, fn, strings.Join(opts, " "), cases.String())
}

func zshArgEntry(f FlagCompletion) string {
	suffix := ""
	switch {
	case f.IsFile:
		suffix = fmt.Sprintf(":%s:_files", f.ValueName)
	case len(f.Values) > 0:
		suffix = fmt.Sprintf(":%s:(%s)", f.ValueName, strings.Join(f.Values, " "))
	case f.ValueName != "":
		suffix = fmt.Sprintf(":%s:", f.ValueName)
	}

	if f.Long != "" && f.Short != "" {
		return fmt.Sprintf("        '(-%s --%s)'{-%s,--%s}'[%s]%s'",
			f.Short, f.Long, f.Short, f.Long, f.Help, suffix)
	}
	if f.Long != "" {
		return fmt.Sprintf("        '--%s[%s]%s'", f.Long, f.Help, suffix)
	}
	return fmt.Sprintf("        '-%s[%s]%s'", f.Short, f.Help, suffix)
}

func zshCompletion(program string) string {
	args := make([]string, 0, len(flagRegistry)+2)
	for _, f := range flagRegistry {
		args = append(args, zshArgEntry(f))
	}
	args = append(args,
		"        '1:pid:_pids'",
		"        '2:interval (seconds):'")

	fn := funcName(program)
	return fmt.Sprintf(`#compdef %[1]s

# Zsh completion script for %[1]s
# Place this file in a directory listed in $fpath

%[2]s() {
    _arguments -s \
%[3]s
}

%[2]s "$@"
`, program, fn, strings.Join(args, " \\\n"))
}

func fishCompletion(program string) string {
	lines := []string{
		"# Fish completion script for " + program,
		fmt.Sprintf("# Add this to ~/.config/fish/completions/%s.fish", program),
		"",
		fmt.Sprintf("complete -c %s -f", program),
		fmt.Sprintf("complete -c %s -xa '(__fish_complete_pids)'", program),
	}
	for _, f := range flagRegistry {
		parts := []string{"complete -c " + program}
		if f.Short != "" {
			parts = append(parts, "-s "+f.Short)
		}
		if f.Long != "" {
			parts = append(parts, "-l "+f.Long)
		}
		parts = append(parts, fmt.Sprintf("-d '%s'", f.Help))
		switch {
		case f.IsFile:
			parts = append(parts, "-rF")
		case len(f.Values) > 0:
			parts = append(parts, fmt.Sprintf("-xa '%s'", strings.Join(f.Values, " ")))
		case f.ValueName != "":
			parts = append(parts, "-x")
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n") + "\n"
}
