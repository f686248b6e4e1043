// Package routes maps request paths to compiled function outputs.
package routes

import (
	"github.com/vk/devfn/internal/build"
	"github.com/vk/devfn/internal/naming"
)

// Route is a request path resolved against one build result. Routes are
// never cached across builds.
type Route struct {
	TaskName   string
	OutputFile string
}

// Resolve finds the output whose task name, prefixed with "/", equals
// urlPath exactly. Outputs without an entry point are skipped.
func Resolve(result *build.Result, rules naming.Rules, urlPath string) (Route, bool) {
	if result == nil {
		return Route{}, false
	}
	for _, file := range result.OutputFiles() {
		out := result.Outputs[file]
		if out.EntryPoint == "" {
			continue
		}
		taskName, ok := rules.TaskName(out.EntryPoint)
		if !ok {
			continue
		}
		if urlPath == "/"+taskName {
			return Route{TaskName: taskName, OutputFile: file}, true
		}
	}
	return Route{}, false
}

// List returns every route available in a build result, in output order.
func List(result *build.Result, rules naming.Rules) []Route {
	if result == nil {
		return nil
	}
	var list []Route
	for _, file := range result.OutputFiles() {
		out := result.Outputs[file]
		if out.EntryPoint == "" {
			continue
		}
		if taskName, ok := rules.TaskName(out.EntryPoint); ok {
			list = append(list, Route{TaskName: taskName, OutputFile: file})
		}
	}
	return list
}
