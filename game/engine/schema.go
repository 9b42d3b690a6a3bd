package engine

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

const tileCodePattern = `^(P|W|G|S|E|RD|GD|YD|BD|I|I_BL|I_BR|I_TL|I_TR|B_[0-9]+|T_[0-9]+|CS_[0-9]+)$`

// JSONSchema describes a tile entry as a short code or a record object
func (TileEntry) JSONSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	record := reflector.ReflectFromType(reflect.TypeOf(TileRecord{}))
	record.Version = ""
	record.Description = "Verbose per-cell form written by saves"

	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{
				Type:        "string",
				Pattern:     tileCodePattern,
				Description: "Short tile code",
			},
			record,
		},
	}
}

// LevelSchema returns the JSON schema of a level document
func LevelSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(LevelDocument{}))
	schema.Version = jsonschema.Version
	schema.Title = "chipgrid level"
	schema.Description = "Tile grid, actor roster and collectibles of one puzzle level."
	return schema
}
