package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report params by the names users type, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// DecodeParams converts loosely typed params (from a JSON body or a YAML
// recipe) into the task's params struct and validates it.
func DecodeParams(def TaskDefinition, raw map[string]any) (any, error) {
	params := def.Params()

	if len(raw) > 0 {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid params for %s: %w", def.Info.Key, err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(params); err != nil {
			return nil, fmt.Errorf("invalid params for %s: %w", def.Info.Key, err)
		}
	}

	if err := ValidateStruct(params); err != nil {
		return nil, fmt.Errorf("invalid params for %s: %w", def.Info.Key, err)
	}
	return params, nil
}

// ValidateStruct runs struct-tag validation and flattens the errors into one
// readable message.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ParamsMap converts a params struct back to the loose form stored in history.
func ParamsMap(params any) map[string]any {
	data, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
