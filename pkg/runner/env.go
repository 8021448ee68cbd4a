package runner

import (
	"os"
	"sort"
	"strings"
)

// SafeEnv builds the child environment from base (os.Environ form). Extra
// variables are applied next, then the safety token and interpreter settings
// are forced so a caller cannot unset them.
func SafeEnv(base []string, projectRoot string, extra map[string]string) []string {
	values := make(map[string]string, len(base)+len(extra)+3)
	var order []string

	set := func(key, value string) {
		if _, ok := values[key]; !ok {
			order = append(order, key)
		}
		values[key] = value
	}

	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		set(key, value)
	}

	for _, key := range sortedKeys(extra) {
		set(key, extra[key])
	}

	set(SafeModeEnv, SafeModeValue)
	set(NoBytecodeEnv, "1")
	if existing := values[ModulePathEnv]; existing != "" {
		set(ModulePathEnv, projectRoot+string(os.PathListSeparator)+existing)
	} else {
		set(ModulePathEnv, projectRoot)
	}

	env := make([]string, 0, len(order))
	for _, key := range order {
		env = append(env, key+"="+values[key])
	}
	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
