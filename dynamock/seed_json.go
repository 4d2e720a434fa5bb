package dynamock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nisimpson/dynamodel"
)

// JSONAPIDocument represents the root structure of a JSON:API document as an
// array of primary resources.
type JSONAPIDocument []JSONAPIResource

// JSONAPIResource represents a single resource in JSON:API format.
type JSONAPIResource struct {
	Type          string                         `json:"type"`
	ID            string                         `json:"id"`
	Attributes    map[string]interface{}         `json:"attributes,omitempty"`
	Relationships map[string]JSONAPIRelationship `json:"relationships,omitempty"`
}

// JSONAPIRelationship represents a relationship in JSON:API format.
type JSONAPIRelationship struct {
	Data interface{} `json:"data"` // Can be JSONAPIResourceIdentifier, []JSONAPIResourceIdentifier, or nil
}

// JSONAPIResourceIdentifier represents a resource identifier in JSON:API format.
type JSONAPIResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SeedFromJSON converts test data from a JSON:API formatted reader into
// entities of the registered models and saves them. Resource types must be
// registered on the seeder's table and relationship names must be declared
// relations. Returns the number of entities saved and any errors generated.
func (s *SeedTestData) SeedFromJSON(ctx context.Context, r io.Reader) (int, error) {
	var document JSONAPIDocument
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&document); err != nil {
		return 0, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	entities := make([]*dynamodel.Entity, 0, len(document))
	for i, resource := range document {
		entity, err := s.convertResourceToEntity(resource)
		if err != nil {
			return 0, fmt.Errorf("failed to convert resource at index %d: %w", i, err)
		}
		entities = append(entities, entity)
	}

	count := 0
	for _, entity := range entities {
		if err := s.SeedEntity(ctx, entity); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// convertResourceToEntity converts a JSON:API resource to an entity.
func (s *SeedTestData) convertResourceToEntity(resource JSONAPIResource) (*dynamodel.Entity, error) {
	if resource.Type == "" {
		return nil, fmt.Errorf("resource missing required 'type' field")
	}
	if resource.ID == "" {
		return nil, fmt.Errorf("resource missing required 'id' field")
	}
	model, err := s.table.Model(resource.Type)
	if err != nil {
		return nil, err
	}

	entity, err := model.FromID(resource.ID)
	if err != nil {
		return nil, err
	}
	fields := model.Schema().Fields
	for name, value := range resource.Attributes {
		v, err := coerce(fields[name].Type, value)
		if err != nil {
			return nil, fmt.Errorf("attribute '%s': %w", name, err)
		}
		if err := entity.Set(name, v); err != nil {
			return nil, err
		}
	}

	for name, relationship := range resource.Relationships {
		targets, err := s.convertRelationshipData(relationship.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to convert relationship '%s': %w", name, err)
		}
		if err := entity.SetRelations(name, targets); err != nil {
			return nil, fmt.Errorf("failed to convert relationship '%s': %w", name, err)
		}
	}
	return entity, nil
}

// coerce adapts a decoded JSON value to the declared field type.
func coerce(ft dynamodel.FieldType, v interface{}) (interface{}, error) {
	switch ft {
	case dynamodel.FieldStringSet:
		list, ok := v.([]interface{})
		if !ok {
			return v, nil
		}
		out := make([]string, 0, len(list))
		for _, el := range list {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Errorf("string set member must be a string, got %T", el)
			}
			out = append(out, s)
		}
		return out, nil
	case dynamodel.FieldTime:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return v, nil
}

// convertRelationshipData converts JSON:API relationship data to entity
// references.
func (s *SeedTestData) convertRelationshipData(data interface{}) ([]*dynamodel.Entity, error) {
	if data == nil {
		return nil, nil
	}

	var identifiers []JSONAPIResourceIdentifier

	// Handle both single resource identifier and array of identifiers
	switch v := data.(type) {
	case map[string]interface{}:
		var identifier JSONAPIResourceIdentifier
		if err := s.mapToStruct(v, &identifier); err != nil {
			return nil, fmt.Errorf("failed to parse resource identifier: %w", err)
		}
		identifiers = []JSONAPIResourceIdentifier{identifier}
	case []interface{}:
		for i, item := range v {
			itemMap, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("relationship data item at index %d is not an object", i)
			}
			var identifier JSONAPIResourceIdentifier
			if err := s.mapToStruct(itemMap, &identifier); err != nil {
				return nil, fmt.Errorf("failed to parse resource identifier at index %d: %w", i, err)
			}
			identifiers = append(identifiers, identifier)
		}
	default:
		return nil, fmt.Errorf("relationship data must be an object or array of objects")
	}

	entities := make([]*dynamodel.Entity, 0, len(identifiers))
	for _, identifier := range identifiers {
		if identifier.Type == "" {
			return nil, fmt.Errorf("resource identifier missing required 'type' field")
		}
		if identifier.ID == "" {
			return nil, fmt.Errorf("resource identifier missing required 'id' field")
		}
		model, err := s.table.Model(identifier.Type)
		if err != nil {
			return nil, err
		}
		entity, err := model.FromID(identifier.ID)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON marshaling/unmarshaling.
func (s *SeedTestData) mapToStruct(m map[string]interface{}, target interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal map to JSON: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON to struct: %w", err)
	}

	return nil
}
