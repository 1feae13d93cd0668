// Package serializer converts payload values to storable bytes and back, keyed by a type tag
// recorded next to the bytes.
package serializer

import (
	"context"
	"reflect"
	"sync"

	apperrors "github.com/allisson/courier/internal/errors"
)

// Serializer errors.
var (
	// ErrTypeNotRegistered indicates a type tag with no registered prototype.
	ErrTypeNotRegistered = apperrors.Wrap(apperrors.ErrInvalidInput, "payload type not registered")

	// ErrTypeNameConflict indicates a type name already bound to a different type.
	ErrTypeNameConflict = apperrors.Wrap(apperrors.ErrConflict, "payload type name already registered")

	// ErrNilPayload indicates a nil payload or prototype.
	ErrNilPayload = apperrors.Wrap(apperrors.ErrInvalidInput, "payload is nil")
)

// Option configures a Serializer.
type Option func(*Serializer)

// WithKeeper seals every encoded payload with keeper.
func WithKeeper(keeper Keeper) Option {
	return func(s *Serializer) {
		s.keeper = keeper
	}
}

// Serializer is a type-keyed payload serializer. It is safe for concurrent use.
type Serializer struct {
	codec  Codec
	keeper Keeper

	mu    sync.RWMutex
	types map[string]reflect.Type
	names map[reflect.Type]string
}

// New creates a Serializer using codec. A nil codec selects JSON.
func New(codec Codec, opts ...Option) *Serializer {
	if codec == nil {
		codec = JSONCodec()
	}
	s := &Serializer{
		codec: codec,
		types: make(map[string]reflect.Type),
		names: make(map[reflect.Type]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Codec returns the configured codec name.
func (s *Serializer) Codec() string {
	return s.codec.Name()
}

// Register keys the prototype's type by its Go type string and returns that tag.
func (s *Serializer) Register(prototype any) (string, error) {
	if prototype == nil {
		return "", ErrNilPayload
	}
	t := reflect.TypeOf(prototype)
	name := t.String()
	if err := s.bind(name, t); err != nil {
		return "", err
	}
	return name, nil
}

// RegisterNamed keys the prototype's type under an explicit name. Explicit names survive
// package renames, so persisted rows keep decoding.
func (s *Serializer) RegisterNamed(name string, prototype any) error {
	if prototype == nil {
		return ErrNilPayload
	}
	return s.bind(name, reflect.TypeOf(prototype))
}

func (s *Serializer) bind(name string, t reflect.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.types[name]; ok {
		if existing != t {
			return apperrors.Wrapf(ErrTypeNameConflict, "%s is bound to %s", name, existing)
		}
		return nil
	}
	s.types[name] = t
	if _, ok := s.names[t]; !ok {
		s.names[t] = name
	}
	return nil
}

// TypeName returns the tag a value of v's type is recorded under, registering it on first use.
func (s *Serializer) TypeName(v any) (string, error) {
	if v == nil {
		return "", ErrNilPayload
	}
	t := reflect.TypeOf(v)

	s.mu.RLock()
	name, ok := s.names[t]
	s.mu.RUnlock()
	if ok {
		return name, nil
	}
	return s.Register(v)
}

// Marshal encodes v and returns its type tag with the stored bytes. The bytes are sealed
// when a keeper is configured.
func (s *Serializer) Marshal(ctx context.Context, v any) (string, []byte, error) {
	name, err := s.TypeName(v)
	if err != nil {
		return "", nil, err
	}

	data, err := s.codec.Marshal(v)
	if err != nil {
		return "", nil, apperrors.Wrapf(err, "failed to encode %s", name)
	}

	if s.keeper != nil {
		data, err = s.keeper.Encrypt(ctx, data)
		if err != nil {
			return "", nil, apperrors.Wrap(err, "failed to seal payload")
		}
	}

	return name, data, nil
}

// Open returns the codec bytes of a stored payload, unsealing it when a keeper is configured.
func (s *Serializer) Open(ctx context.Context, data []byte) ([]byte, error) {
	if s.keeper == nil {
		return data, nil
	}
	plain, err := s.keeper.Decrypt(ctx, data)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open payload")
	}
	return plain, nil
}

// Decode reconstructs a value of the exact type registered under typeName from codec bytes.
// Pointer prototypes decode to pointers, value prototypes to values.
func (s *Serializer) Decode(typeName string, data []byte) (any, error) {
	s.mu.RLock()
	t, ok := s.types[typeName]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.Wrapf(ErrTypeNotRegistered, "%s", typeName)
	}

	if t.Kind() == reflect.Pointer {
		target := reflect.New(t.Elem())
		if err := s.codec.Unmarshal(data, target.Interface()); err != nil {
			return nil, apperrors.Wrapf(err, "failed to decode %s", typeName)
		}
		return target.Interface(), nil
	}

	target := reflect.New(t)
	if err := s.codec.Unmarshal(data, target.Interface()); err != nil {
		return nil, apperrors.Wrapf(err, "failed to decode %s", typeName)
	}
	return target.Elem().Interface(), nil
}

// Unmarshal opens and decodes stored bytes into a value of the type registered under typeName.
func (s *Serializer) Unmarshal(ctx context.Context, typeName string, data []byte) (any, error) {
	plain, err := s.Open(ctx, data)
	if err != nil {
		return nil, err
	}
	return s.Decode(typeName, plain)
}

// Close releases the keeper, if any.
func (s *Serializer) Close() error {
	if s.keeper == nil {
		return nil
	}
	return s.keeper.Close()
}
