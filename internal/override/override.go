// Package override applies user-supplied property rules during schema
// conversion. A matched property is either omitted from its containing type
// or replaced with an externally provided type name, used verbatim. Rules
// match on the property name (exact or regular expression) and optionally on
// the property schema (subset or exhaustive).
package override

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"sigs.k8s.io/yaml"
)

// Action is the effect of a matched rule. Exactly one of Replace and Omit is
// set.
type Action struct {
	// Replace names the type emitted instead of a synthesized one. The name is
	// used verbatim, so it may carry a package qualifier.
	Replace string
	// Omit drops the property from its containing type entirely.
	Omit bool
}

// Set holds compiled property rules. Rules are evaluated in declaration
// order and the first match wins.
type Set struct {
	rules []rule
}

type rule struct {
	names  []nameMatcher
	schema *schemaMatcher
	action Action
}

type nameMatcher struct {
	exact string
	regex *regexp.Regexp
}

func (m nameMatcher) match(name string) bool {
	if m.regex != nil {
		return m.regex.MatchString(name)
	}
	return m.exact == name
}

type schemaMatcher struct {
	exhaustive bool
	pattern    *apiextv1.JSONSchemaProps
}

// Load reads and concatenates rule files. Later files append their rules
// after earlier ones, preserving declaration order.
func Load(paths ...string) (*Set, error) {
	out := &Set{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading overrides: %w", err)
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing overrides %s: %w", path, err)
		}
		out.rules = append(out.rules, s.rules...)
	}
	return out, nil
}

// Parse compiles a YAML rules document:
//
//	propertyRules:
//	  - matchName:
//	      - exact: lastScaleTime
//	      - regex: ".*Time$"
//	    matchSchema:
//	      subset:
//	        type: string
//	        format: date-time
//	    matchSuccess:
//	      replace: metav1.Time
//	  - matchName:
//	      - exact: internalDebug
//	    matchSuccess: omit
func Parse(data []byte) (*Set, error) {
	var cfg fileConfig
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}
	s := &Set{}
	for i, rc := range cfg.PropertyRules {
		r, err := rc.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		s.rules = append(s.rules, r)
	}
	return s, nil
}

// Property returns the action of the first rule matching the named property
// and its schema. Safe to call on a nil set.
func (s *Set) Property(name string, p *apiextv1.JSONSchemaProps) (Action, bool) {
	if s == nil {
		return Action{}, false
	}
	for i := range s.rules {
		if s.rules[i].match(name, p) {
			return s.rules[i].action, true
		}
	}
	return Action{}, false
}

func (r *rule) match(name string, p *apiextv1.JSONSchemaProps) bool {
	if len(r.names) > 0 {
		hit := false
		for _, m := range r.names {
			if m.match(name) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if r.schema != nil {
		if r.schema.exhaustive {
			return exhaustiveMatch(r.schema.pattern, p)
		}
		return subsetMatch(r.schema.pattern, p)
	}
	return true
}

type fileConfig struct {
	PropertyRules []ruleConfig `json:"propertyRules"`
}

type ruleConfig struct {
	MatchName    []nameConfig  `json:"matchName,omitempty"`
	MatchSchema  *schemaConfig `json:"matchSchema,omitempty"`
	MatchSuccess *actionConfig `json:"matchSuccess,omitempty"`
}

type nameConfig struct {
	Exact string `json:"exact,omitempty"`
	Regex string `json:"regex,omitempty"`
}

type schemaConfig struct {
	Subset     *apiextv1.JSONSchemaProps `json:"subset,omitempty"`
	Exhaustive *apiextv1.JSONSchemaProps `json:"exhaustive,omitempty"`
}

// actionConfig accepts the bare string "omit" or an object {replace: Name}.
type actionConfig struct {
	action Action
}

func (a *actionConfig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "omit" {
			return fmt.Errorf("unknown action %q", s)
		}
		a.action = Action{Omit: true}
		return nil
	}
	var obj struct {
		Replace string `json:"replace"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("matchSuccess must be \"omit\" or {replace: TypeName}: %w", err)
	}
	if obj.Replace == "" {
		return fmt.Errorf("replace action needs a type name")
	}
	a.action = Action{Replace: obj.Replace}
	return nil
}

func (rc ruleConfig) compile() (rule, error) {
	r := rule{}
	for _, nc := range rc.MatchName {
		switch {
		case nc.Exact != "" && nc.Regex != "":
			return rule{}, fmt.Errorf("matchName entry sets both exact and regex")
		case nc.Exact != "":
			r.names = append(r.names, nameMatcher{exact: nc.Exact})
		case nc.Regex != "":
			re, err := regexp.Compile(nc.Regex)
			if err != nil {
				return rule{}, fmt.Errorf("compiling %q: %w", nc.Regex, err)
			}
			r.names = append(r.names, nameMatcher{regex: re})
		default:
			return rule{}, fmt.Errorf("matchName entry needs exact or regex")
		}
	}
	if rc.MatchSchema != nil {
		switch {
		case rc.MatchSchema.Subset != nil && rc.MatchSchema.Exhaustive != nil:
			return rule{}, fmt.Errorf("matchSchema sets both subset and exhaustive")
		case rc.MatchSchema.Subset != nil:
			r.schema = &schemaMatcher{pattern: rc.MatchSchema.Subset}
		case rc.MatchSchema.Exhaustive != nil:
			r.schema = &schemaMatcher{exhaustive: true, pattern: rc.MatchSchema.Exhaustive}
		default:
			return rule{}, fmt.Errorf("matchSchema needs subset or exhaustive")
		}
	}
	if len(r.names) == 0 && r.schema == nil {
		return rule{}, fmt.Errorf("rule matches nothing")
	}
	if rc.MatchSuccess == nil {
		return rule{}, fmt.Errorf("rule has no matchSuccess action")
	}
	r.action = rc.MatchSuccess.action
	return r, nil
}
