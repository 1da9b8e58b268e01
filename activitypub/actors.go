package activitypub

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/deemkeen/tootsite/domain"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/actor.json
var actorSchemaJSON []byte

var actorSchema = mustCompileSchema("actor.json", actorSchemaJSON)

// ActorDocument is the subset of actor.json we read
type ActorDocument struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Name              string  `json:"name"`
	URL               string  `json:"url"`
	PreferredUsername string  `json:"preferredUsername"`
	Summary           *string `json:"summary"`
}

// ParseActor reads actor.json. name, url and preferredUsername must be present and strings.
func ParseActor(r io.Reader) (*domain.Actor, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read actor: %w", domain.ErrMalformedProfile, err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse actor JSON: %w", domain.ErrMalformedProfile, err)
	}
	if err := actorSchema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedProfile, err)
	}

	var doc ActorDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode actor: %w", domain.ErrMalformedProfile, err)
	}

	actor := &domain.Actor{
		Name:              doc.Name,
		URL:               doc.URL,
		PreferredUsername: doc.PreferredUsername,
	}
	if doc.Summary != nil {
		actor.Summary = *doc.Summary
	}
	return actor, nil
}

func mustCompileSchema(name string, raw []byte) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}
