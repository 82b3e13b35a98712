package risk

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// shellFacts is what the heuristics need to know about a command line
type shellFacts struct {
	maxPipeStages   int
	redirectTargets []string
	calls           [][]string // literal words of every simple command
	exports         bool
	assigns         []string // NAME=value assignments, lower-cased
}

var outputRedirects = map[string]bool{">": true, ">>": true, "&>": true, "&>>": true, ">|": true}

// parseShell walks the bash AST. ok is false when the command does not parse.
func parseShell(command string) (shellFacts, bool) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return shellFacts{}, false
	}

	var facts shellFacts
	for _, stmt := range file.Stmts {
		if stages := pipeStages(stmt); stages > facts.maxPipeStages {
			facts.maxPipeStages = stages
		}
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Redirect:
			if outputRedirects[n.Op.String()] && n.Word != nil {
				facts.redirectTargets = append(facts.redirectTargets, wordString(n.Word))
			}
		case *syntax.CallExpr:
			for _, as := range n.Assigns {
				facts.assigns = append(facts.assigns, assignString(as))
			}
			if len(n.Args) > 0 {
				words := make([]string, 0, len(n.Args))
				for _, w := range n.Args {
					words = append(words, wordString(w))
				}
				facts.calls = append(facts.calls, words)
			}
		case *syntax.DeclClause:
			if n.Variant != nil && n.Variant.Value == "export" {
				facts.exports = true
			}
			for _, as := range n.Args {
				facts.assigns = append(facts.assigns, assignString(as))
			}
		}
		return true
	})
	return facts, true
}

// pipeStages counts the commands joined by | or |& in the longest pipeline under stmt
func pipeStages(stmt *syntax.Stmt) int {
	longest := 1
	syntax.Walk(stmt, func(node syntax.Node) bool {
		bin, ok := node.(*syntax.BinaryCmd)
		if !ok || !isPipe(bin.Op) {
			return true
		}
		if n := countPipeline(bin); n > longest {
			longest = n
		}
		return true
	})
	if longest < 2 {
		return 1
	}
	return longest
}

func countPipeline(bin *syntax.BinaryCmd) int {
	count := 0
	for _, side := range []*syntax.Stmt{bin.X, bin.Y} {
		if inner, ok := side.Cmd.(*syntax.BinaryCmd); ok && isPipe(inner.Op) {
			count += countPipeline(inner)
		} else {
			count++
		}
	}
	return count
}

func isPipe(op syntax.BinCmdOperator) bool {
	return op == syntax.Pipe || op.String() == "|&"
}

func wordString(w *syntax.Word) string {
	if lit := w.Lit(); lit != "" {
		return lit
	}
	var sb strings.Builder
	syntax.NewPrinter().Print(&sb, w)
	return strings.Trim(sb.String(), `"'`)
}

func assignString(as *syntax.Assign) string {
	if as.Name == nil {
		return ""
	}
	value := ""
	if as.Value != nil {
		value = wordString(as.Value)
	}
	return as.Name.Value + "=" + value
}

var (
	fallbackRedirect = regexp.MustCompile(`(?:&?>{1,2}|>\|)\s*(/\S+)`)
	fallbackExport   = regexp.MustCompile(`(^|[;&|\s])export\s`)
	fallbackAssign   = regexp.MustCompile(`\b([a-z_][a-z0-9_]*)=(\S*)`)
	fallbackSplit    = regexp.MustCompile(`[;&|]+`)
)

// fallbackFacts approximates shellFacts with plain text matching
func fallbackFacts(command string) shellFacts {
	facts := shellFacts{
		maxPipeStages: strings.Count(strings.ReplaceAll(command, "||", ""), "|") + 1,
		exports:       fallbackExport.MatchString(command),
	}
	for _, m := range fallbackRedirect.FindAllStringSubmatch(command, -1) {
		facts.redirectTargets = append(facts.redirectTargets, m[1])
	}
	for _, m := range fallbackAssign.FindAllStringSubmatch(command, -1) {
		facts.assigns = append(facts.assigns, m[1]+"="+m[2])
	}
	for _, segment := range fallbackSplit.Split(command, -1) {
		if words := strings.Fields(segment); len(words) > 0 {
			facts.calls = append(facts.calls, words)
		}
	}
	return facts
}
