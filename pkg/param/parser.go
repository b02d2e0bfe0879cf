package param

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	defaultName = "Unknown"
	defaultKind = INTEGER16
	defaultMin  = 0
	defaultMax  = 100
)

// Single entry of a JSON definition document, optional fields are pointers
// so that defaults can be told apart from zero values.
type jsonDefinition struct {
	ID       uint16   `json:"id"`
	Name     *string  `json:"name"`
	Type     *string  `json:"type"`
	Editable bool     `json:"editable"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Unit     string   `json:"unit"`
	Decimals uint8    `json:"decimals"`
}

type jsonDocument struct {
	Parameters []jsonDefinition `json:"parameters"`
}

// ParseJSON reads a document of the form {"parameters": [{"id": 1, ...}]}
// Missing fields default to name "Unknown", type int16, min 0 and max 100.
func ParseJSON(r io.Reader) ([]Definition, error) {
	var doc jsonDocument
	err := json.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameter definitions : %w", err)
	}
	defs := make([]Definition, 0, len(doc.Parameters))
	for _, jd := range doc.Parameters {
		def := Definition{
			ID:       jd.ID,
			Name:     defaultName,
			Kind:     defaultKind,
			Min:      defaultMin,
			Max:      defaultMax,
			Unit:     jd.Unit,
			Decimals: jd.Decimals,
			Editable: jd.Editable,
		}
		if jd.Name != nil {
			def.Name = *jd.Name
		}
		if jd.Type != nil {
			def.Kind, err = ParseKind(*jd.Type)
			if err != nil {
				return nil, fmt.Errorf("parameter %d : %w", jd.ID, err)
			}
		}
		if jd.Min != nil {
			def.Min = *jd.Min
		}
		if jd.Max != nil {
			def.Max = *jd.Max
		}
		defs = append(defs, def)
	}
	return defs, nil
}

var matchParamSection = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)

// ParseINI reads EDS-like definitions, one section per parameter
// named after its id in hex :
//
//	[0005]
//	ParameterName=Motor temp
//	DataType=0x0003
//	LowLimit=0
//	HighLimit=150
//	Unit=C
//	AccessType=rw
//
// file can be a path, []byte or an io.Reader, as accepted by ini.Load
func ParseINI(file any) ([]Definition, error) {
	f, err := ini.Load(file)
	if err != nil {
		return nil, err
	}
	defs := make([]Definition, 0)
	for _, section := range f.Sections() {
		if !matchParamSection.MatchString(section.Name()) {
			continue
		}
		id, err := strconv.ParseUint(section.Name(), 16, 16)
		if err != nil {
			return nil, err
		}
		def := Definition{
			ID:   uint16(id),
			Name: section.Key("ParameterName").MustString(defaultName),
			Kind: defaultKind,
			Min:  section.Key("LowLimit").MustFloat64(defaultMin),
			Max:  section.Key("HighLimit").MustFloat64(defaultMax),
			Unit: section.Key("Unit").String(),
		}
		if section.HasKey("DataType") {
			def.Kind, err = ParseKind(section.Key("DataType").String())
			if err != nil {
				return nil, fmt.Errorf("section [%s] : %w", section.Name(), err)
			}
		}
		def.Decimals = uint8(section.Key("Decimals").MustUint(0))
		access := strings.ToLower(section.Key("AccessType").String())
		def.Editable = strings.Contains(access, "w")
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile parses a definition file, choosing the format from the extension
func LoadFile(path string) ([]Definition, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".eds":
		return ParseINI(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseJSON(f)
	}
}
