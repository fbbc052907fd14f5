package sandbox

// Allowlist is the fixed set of text-processing utilities the sandbox may
// launch. Lifted verbatim from the shell engine this was distilled from;
// growing it is a deliberate, reviewed change, never a pipeline-time
// decision.
var Allowlist = []string{
	"grep", "jq", "sort", "uniq", "cut", "sed", "awk",
	"wc", "head", "tail", "tr", "echo", "printf", "date",
	"bc", "paste", "shuf", "join",
}

// Allowed reports whether cmd is an exact allowlist entry. It is never a
// substring or prefix match, and the caller is expected to pass argv[0]
// verbatim, never a path.
func Allowed(cmd string) bool {
	for _, c := range Allowlist {
		if c == cmd {
			return true
		}
	}
	return false
}
