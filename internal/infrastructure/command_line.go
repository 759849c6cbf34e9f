package infrastructure

import "strings"

// CommandLine renders a binary and its arguments as a shell-safe string for
// logging. exec.Command passes arguments directly, so this is display only.
func CommandLine(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(binary))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\r'\"$`\\!*?[](){}|;<>&~#%") {
		return s
	}
	// Single-quote the whole argument; embedded single quotes become '"'"'
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
