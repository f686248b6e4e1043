package hcl

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/devfn/internal/config"
	"github.com/vk/devfn/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// translateProject converts the HCL-specific project schema into the agnostic model.
func translateProject(p *schema.Project) (*config.Model, error) {
	m := &config.Model{
		Root:       p.Root,
		Globs:      p.Globs,
		Extensions: p.Extensions,
		Adapter:    config.AdapterKind(strings.ToLower(p.Adapter)),
		ReloadURL:  p.ReloadURL,
	}
	if m.Adapter == "" {
		m.Adapter = config.AdapterNone
	}
	if p.EntrySuffix != nil {
		m.EntrySuffix = *p.EntrySuffix
	}

	val, err := evalStatic(p.MaxInstanceConcurrency)
	if err != nil {
		return nil, fmt.Errorf("max_instance_concurrency: %w", err)
	}
	m.MaxInstanceConcurrency, err = translateConcurrency(val)
	if err != nil {
		return nil, fmt.Errorf("max_instance_concurrency: %w", err)
	}
	return m, nil
}

// translateConcurrency accepts a number (global limit) or an object/map of
// numbers (per-task limits). Null yields the zero Concurrency.
func translateConcurrency(val cty.Value) (config.Concurrency, error) {
	var c config.Concurrency
	if val.IsNull() {
		return c, nil
	}
	if !val.IsWhollyKnown() {
		return c, fmt.Errorf("value must be known")
	}

	ty := val.Type()
	switch {
	case ty == cty.Number:
		n, err := ctyToInt(val)
		if err != nil {
			return c, err
		}
		c.Global = &n
	case ty.IsObjectType() || ty.IsMapType():
		c.PerTask = make(map[string]int, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			n, err := ctyToInt(v)
			if err != nil {
				return c, fmt.Errorf("%s: %w", k.AsString(), err)
			}
			c.PerTask[k.AsString()] = n
		}
	default:
		return c, fmt.Errorf("must be a number or an object of numbers, got %s", ty.FriendlyName())
	}
	return c, nil
}

// ctyToInt converts a value to a whole Go int, accepting numeric strings.
func ctyToInt(v cty.Value) (int, error) {
	num, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, err
	}
	if num.IsNull() {
		return 0, fmt.Errorf("value must not be null")
	}
	if !num.AsBigFloat().IsInt() {
		return 0, fmt.Errorf("value must be a whole number, got %s", num.AsBigFloat().Text('g', -1))
	}
	var n int
	if err := gocty.FromCtyValue(num, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// translateManifest converts the HCL-specific manifest schema into the agnostic model.
func translateManifest(m *schema.Manifest, filename string) (*config.Manifest, error) {
	if strings.TrimSpace(m.Handler) == "" {
		return nil, fmt.Errorf("manifest %s: handler must not be empty", filename)
	}
	out := &config.Manifest{Handler: m.Handler}

	val, err := evalStatic(m.Headers)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: headers: %w", filename, err)
	}
	if val.IsNull() {
		return out, nil
	}
	headers, err := convert.Convert(val, cty.Map(cty.String))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: headers must be a map of strings: %w", filename, err)
	}
	if headers.IsNull() {
		return out, nil
	}
	out.Headers = make(map[string]string, headers.LengthInt())
	if err := gocty.FromCtyValue(headers, &out.Headers); err != nil {
		return nil, fmt.Errorf("manifest %s: headers: %w", filename, err)
	}
	return out, nil
}

// evalStatic evaluates an optional expression without variables. A nil
// expression evaluates to null.
func evalStatic(expr hcl.Expression) (cty.Value, error) {
	if expr == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return val, nil
}
