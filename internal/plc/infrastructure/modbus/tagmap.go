package modbus

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Area is a Modbus data table.
type Area string

const (
	AreaHolding  Area = "holding"
	AreaInput    Area = "input"
	AreaCoil     Area = "coil"
	AreaDiscrete Area = "discrete"
)

// DataType is how registers decode into a value.
type DataType string

const (
	TypeBool    DataType = "bool"
	TypeInt16   DataType = "int16"
	TypeUint16  DataType = "uint16"
	TypeInt32   DataType = "int32"
	TypeUint32  DataType = "uint32"
	TypeFloat32 DataType = "float32"
)

// registers returns the number of 16-bit registers one value occupies.
func (t DataType) registers() int {
	switch t {
	case TypeInt32, TypeUint32, TypeFloat32:
		return 2
	default:
		return 1
	}
}

// TagDefinition maps a tag name onto controller memory.
type TagDefinition struct {
	Name     string   `yaml:"name"`
	Area     Area     `yaml:"area"`
	Address  uint16   `yaml:"address"`
	Type     DataType `yaml:"type"`
	Scale    float64  `yaml:"scale,omitempty"`
	WordSwap bool     `yaml:"word_swap,omitempty"`
}

// TagMap is the YAML document describing the controller's tags.
type TagMap struct {
	Tags []TagDefinition `yaml:"tags"`
}

// LoadTagMap reads a tag map file.
func LoadTagMap(path string) (TagMap, error) {
	var m TagMap
	if path == "" {
		return m, errors.New("modbus: empty tag map path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, m.Validate()
}

// Validate normalizes defaults and rejects unusable entries.
func (m *TagMap) Validate() error {
	seen := make(map[string]struct{}, len(m.Tags))
	for i := range m.Tags {
		def := &m.Tags[i]
		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" {
			return fmt.Errorf("modbus: tag %d has no name", i)
		}
		if _, dup := seen[def.Name]; dup {
			return fmt.Errorf("modbus: duplicate tag %q", def.Name)
		}
		seen[def.Name] = struct{}{}
		if def.Area == "" {
			def.Area = AreaHolding
		}
		switch def.Area {
		case AreaCoil, AreaDiscrete:
			def.Type = TypeBool
		case AreaHolding, AreaInput:
			if def.Type == "" {
				def.Type = TypeUint16
			}
			switch def.Type {
			case TypeInt16, TypeUint16, TypeInt32, TypeUint32, TypeFloat32:
			default:
				return fmt.Errorf("modbus: tag %q has unsupported type %q", def.Name, def.Type)
			}
		default:
			return fmt.Errorf("modbus: tag %q has unknown area %q", def.Name, def.Area)
		}
	}
	return nil
}

func (m TagMap) lookup(name string) (TagDefinition, bool) {
	for _, def := range m.Tags {
		if def.Name == name {
			return def, true
		}
	}
	return TagDefinition{}, false
}

func (m TagMap) names() []string {
	names := make([]string, len(m.Tags))
	for i, def := range m.Tags {
		names[i] = def.Name
	}
	return names
}
