// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"encoding/json"
	"path"
	"regexp"
	"sort"
	"strings"
)

// TsconfigTabName is the project tab read for compilerOptions.paths aliases.
const TsconfigTabName = "tsconfig.json"

// pathAlias maps a tsconfig paths pattern to a project-relative target.
type pathAlias struct {
	alias  string
	target string
	re     *regexp.Regexp
}

// parseTsconfigPathAlias parses path aliases from the project's tsconfig.json
// tab. Targets are resolved against compilerOptions.baseUrl and expressed
// relative to the project root without the local prefix. A project without a
// tsconfig tab has no aliases.
func parseTsconfigPathAlias(tabs []Tab) ([]pathAlias, error) {
	idx := FindTab(tabs, TsconfigTabName)
	if idx < 0 {
		return nil, nil
	}

	var tsconfig map[string]interface{}
	if err := json.Unmarshal([]byte(tabs[idx].Source), &tsconfig); err != nil {
		return nil, err
	}

	compilerOptions, ok := tsconfig["compilerOptions"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	baseURL, _ := compilerOptions["baseUrl"].(string)
	if baseURL == "" {
		baseURL = "."
	}

	var aliases []pathAlias
	if paths, ok := compilerOptions["paths"].(map[string]interface{}); ok {
		for key, value := range paths {
			pathArray, ok := value.([]interface{})
			if !ok || len(pathArray) == 0 || key == "" {
				continue
			}
			pathStr, ok := pathArray[0].(string)
			if !ok {
				continue
			}
			target := path.Join(toPosixPath(baseURL), toPosixPath(pathStr))
			if strings.HasSuffix(pathStr, "*") && !strings.HasSuffix(target, "*") {
				target += "/*"
			}
			aliases = append(aliases, newPathAlias(key, target))
		}
	}

	// Longest pattern first so "@/components/*" wins over "@/*".
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i].alias) != len(aliases[j].alias) {
			return len(aliases[i].alias) > len(aliases[j].alias)
		}
		return aliases[i].alias < aliases[j].alias
	})
	return aliases, nil
}

func newPathAlias(alias, target string) pathAlias {
	pattern := "^" + regexp.QuoteMeta(alias) + "$"
	// Support wildcard '*' in alias
	if strings.HasSuffix(alias, "*") {
		pattern = "^" + regexp.QuoteMeta(strings.TrimSuffix(alias, "*")) + "(.*)$"
		target = strings.TrimSuffix(target, "*") + "${1}"
	}
	return pathAlias{alias: alias, target: target, re: regexp.MustCompile(pattern)}
}

// applyPathAlias maps an import path through the first matching alias.
// It returns the project-relative target and whether an alias matched.
func applyPathAlias(aliases []pathAlias, importPath string) (string, bool) {
	for _, a := range aliases {
		if a.re.MatchString(importPath) {
			return a.re.ReplaceAllString(importPath, a.target), true
		}
	}
	return importPath, false
}
