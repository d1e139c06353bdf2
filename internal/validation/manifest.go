package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Manifest lists the objects a submission is made of. Its own object id is the
// submission receipt.
type Manifest struct {
	Files []ManifestFile `json:"files" validate:"required,min=1,dive"`
}

type ManifestFile struct {
	ObjectID string `json:"object_id" validate:"required,max=128,object_id"`
	Format   string `json:"format,omitempty" validate:"omitempty,max=32"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=256"`
}

func newManifestValidator() *validator.Validate {
	v := validator.New()
	// report json names in the messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("object_id", objectIDValidator)
	return v
}

func objectIDValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return strings.IndexFunc(val, unicode.IsSpace) == -1 && !strings.Contains(val, "/")
}

// parseManifest converts the decoded document into a manifest.
func parseManifest(doc any) (*Manifest, error) {
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("manifest must be a json object")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	for i := range m.Files {
		m.Files[i].Format = strings.ToLower(strings.TrimSpace(m.Files[i].Format))
	}

	return &m, nil
}

// describe turns validator errors into a single readable line.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Manifest.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", field, fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
