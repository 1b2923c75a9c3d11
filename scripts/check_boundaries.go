package main

import (
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "pollledger"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what one layer of a context module may import besides the
// standard library. Prefixes starting with "/" are relative to the module.
type layerRule struct {
	allowed      []string
	forbidden    []string
	thirdPartyOK bool
}

var layerRules = map[string]layerRule{
	"domain": {
		allowed: []string{"/domain"},
	},
	"ports": {
		allowed: []string{"/domain", modulePath + "/internal/shared"},
	},
	"application": {
		allowed:   []string{"/application", "/domain", "/ports"},
		forbidden: []string{"/adapters/", "/transport/"},
	},
	"transport": {
		allowed:   []string{"/transport"},
		forbidden: []string{"/adapters/", "/application"},
	},
	"adapters": {
		allowed:      []string{"/adapters", "/application", "/domain", "/ports", "/transport", modulePath + "/internal/shared"},
		thirdPartyOK: true,
	},
}

func main() {
	root := flag.String("root", "contexts", "directory holding <context>/<service> modules")
	flag.Parse()

	violations := collectViolations(*root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	rootName := filepath.Base(filepath.Clean(root))

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}

		contextsPrefix := modulePath + "/" + rootName
		modulePrefix := fmt.Sprintf("%s/%s/%s", contextsPrefix, parts[0], parts[1])
		layer := ""
		if len(parts) > 3 {
			layer = parts[2]
		}
		violations = append(violations, validateFile(path, filepath.ToSlash(path), layer, contextsPrefix, modulePrefix)...)
		return nil
	})

	return violations
}

func validateFile(path string, normalizedPath string, layer string, contextsPrefix string, modulePrefix string) []violation {
	var violations []violation

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return append(violations, violation{
			File: normalizedPath,
			Line: 1,
			Rule: "file must parse",
		})
	}

	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if hasPrefix(importPath, contextsPrefix) && !hasPrefix(importPath, modulePrefix) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   "cross-module imports are forbidden",
			})
			continue
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		if v, bad := checkLayerImport(rule, layer, importPath, modulePrefix); bad {
			v.File = normalizedPath
			v.Line = line
			violations = append(violations, v)
		}
	}

	return violations
}

func checkLayerImport(rule layerRule, layer string, importPath string, modulePrefix string) (violation, bool) {
	local := strings.TrimPrefix(importPath, modulePrefix)
	for _, forbidden := range rule.forbidden {
		if hasPrefix(importPath, modulePrefix) && strings.Contains(local+"/", forbidden) {
			return violation{Import: importPath, Rule: layer + " must not import " + strings.Trim(forbidden, "/")}, true
		}
	}
	if isStdlib(importPath) {
		return violation{}, false
	}
	if !hasPrefix(importPath, modulePath) {
		if rule.thirdPartyOK {
			return violation{}, false
		}
		return violation{Import: importPath, Rule: layer + " must not import third-party packages"}, true
	}
	for _, allowed := range rule.allowed {
		prefix := allowed
		if strings.HasPrefix(allowed, "/") {
			prefix = modulePrefix + allowed
		}
		if hasPrefix(importPath, prefix) {
			return violation{}, false
		}
	}
	return violation{Import: importPath, Rule: layer + " import is outside explicit allowlist"}, true
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	first := strings.SplitN(importPath, "/", 2)[0]
	return !strings.Contains(first, ".") && first != modulePath
}
