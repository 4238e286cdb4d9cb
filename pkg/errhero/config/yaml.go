package config

import (
	"fmt"
	"math/bits"

	"gopkg.in/yaml.v3"

	"github.com/strongdm/errhero/pkg/errhero"
)

// Exclusion is an exclude-conditions entry. It accepts a bare type
// ("user_deprecated"), a [type, message] sequence or a {type, message}
// mapping.
type Exclusion struct {
	errhero.Exclusion
}

func (x *Exclusion) UnmarshalYAML(node *yaml.Node) error {
	var (
		typeName string
		message  *string
	)

	switch node.Kind {
	case yaml.ScalarNode:
		typeName = node.Value
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: exclusion must be [type, message], got %d items", node.Line, len(node.Content))
		}
		typeName = node.Content[0].Value
		message = &node.Content[1].Value
	case yaml.MappingNode:
		var m struct {
			Type    string  `yaml:"type"`
			Message *string `yaml:"message"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		typeName, message = m.Type, m.Message
	default:
		return fmt.Errorf("line %d: unsupported exclusion", node.Line)
	}

	t, err := errhero.ParseConditionType(typeName)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	// Exclusions match one type exactly.
	if bits.OnesCount32(uint32(t)) != 1 {
		return fmt.Errorf("line %d: exclusion %q must name a single condition type", node.Line, typeName)
	}
	if message != nil {
		x.Exclusion = errhero.ExcludeMessage(t, *message)
	} else {
		x.Exclusion = errhero.ExcludeType(t)
	}
	return nil
}

func (x Exclusion) MarshalYAML() (any, error) {
	if x.HasMessage {
		return []string{x.Type.String(), x.Message}, nil
	}
	return x.Type.String(), nil
}

// Level is a reporting mask given as a name, a "|" separated list, a
// sequence of names or an integer.
type Level struct {
	errhero.ConditionType
}

func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t, err := errhero.ParseConditionType(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		l.ConditionType = t
	case yaml.SequenceNode:
		var mask errhero.ConditionType
		for _, item := range node.Content {
			t, err := errhero.ParseConditionType(item.Value)
			if err != nil {
				return fmt.Errorf("line %d: %w", item.Line, err)
			}
			mask |= t
		}
		l.ConditionType = mask
	default:
		return fmt.Errorf("line %d: unsupported reporting level", node.Line)
	}
	return nil
}

func (l Level) MarshalYAML() (any, error) {
	return l.ConditionType.String(), nil
}
