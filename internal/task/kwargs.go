package task

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Kwargs are the JSON-safe keyword arguments of an action.
type Kwargs map[string]interface{}

type identifiable interface {
	GetID() uuid.UUID
}

// Serialize converts kwargs into their JSON-safe form: entities collapse to their
// primary key, lists convert element by element.
func Serialize(kwargs map[string]interface{}) Kwargs {
	out := make(Kwargs, len(kwargs))
	for k, v := range kwargs {
		out[k] = serialize(v)
	}
	return out
}

func serialize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case identifiable:
		return t.GetID().String()
	case uuid.UUID:
		return t.String()
	case *uuid.UUID:
		if t == nil {
			return nil
		}
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	case map[string]interface{}:
		return map[string]interface{}(Serialize(t))
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = serialize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func (k Kwargs) String(key string) string {
	s, _ := k[key].(string)
	return s
}

func (k Kwargs) UUID(key string) (uuid.UUID, error) {
	s, ok := k[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("kwarg %q: missing id", key)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("kwarg %q: %w", key, err)
	}
	return id, nil
}

func (k Kwargs) UUIDs(key string) ([]uuid.UUID, error) {
	raw, ok := k[key].([]interface{})
	if !ok {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		s, _ := v.(string)
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("kwarg %q: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
