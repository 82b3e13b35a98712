package risk

import "strings"

type heuristic struct {
	category string
	weight   float64
	match    func(f shellFacts) bool
}

var heuristics = []heuristic{
	{CategoryPipeline, 0.2, func(f shellFacts) bool { return f.maxPipeStages > 3 }},
	{CategoryRedirect, 0.3, func(f shellFacts) bool {
		for _, target := range f.redirectTargets {
			if target == "/dev/null" {
				continue
			}
			if strings.HasPrefix(target, "/dev/") || strings.HasPrefix(target, "/etc/") {
				return true
			}
		}
		return false
	}},
	{CategoryHistoryEvasion, 0.4, suppressesHistory},
	{CategoryEnvironment, 0.1, func(f shellFacts) bool {
		if f.exports {
			return true
		}
		return hasCall(f, func(words []string) bool { return words[0] == "export" })
	}},
	{CategoryPersistence, 0.2, func(f shellFacts) bool {
		return hasCall(f, func(words []string) bool { return words[0] == "crontab" || (words[0] == "sudo" && len(words) > 1 && words[1] == "crontab") })
	}},
}

func suppressesHistory(f shellFacts) bool {
	for _, as := range f.assigns {
		if as == "histsize=0" || as == "histfilesize=0" || as == "histfile=/dev/null" {
			return true
		}
	}
	return hasCall(f, func(words []string) bool {
		if len(words) < 2 {
			return false
		}
		switch words[0] {
		case "unset":
			for _, w := range words[1:] {
				if w == "histfile" {
					return true
				}
			}
		case "history":
			return words[1] == "-c"
		}
		return false
	})
}

func hasCall(f shellFacts, pred func(words []string) bool) bool {
	for _, words := range f.calls {
		if len(words) > 0 && pred(words) {
			return true
		}
	}
	return false
}
