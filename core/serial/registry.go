package serial

import (
	"maps"
	"slices"
)

// RegistryBuilder collects codecs during application wiring. It is not safe
// for concurrent use; call Build once registration is complete.
type RegistryBuilder struct {
	serializers   map[SerializedDataType]Serializer
	deserializers map[SerializedDataType]map[string]Deserializer
	defaults      map[SerializedDataType]MimeType
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		serializers:   map[SerializedDataType]Serializer{},
		deserializers: map[SerializedDataType]map[string]Deserializer{},
		defaults:      map[SerializedDataType]MimeType{},
	}
}

// AddSerializer registers the serializer for t, replacing any previous one.
func (b *RegistryBuilder) AddSerializer(t SerializedDataType, s Serializer) *RegistryBuilder {
	if t == "" || s == nil {
		panic(contractViolation("serializer registration requires a type and a serializer"))
	}
	b.serializers[t] = s
	return b
}

// AddDeserializer registers d for t and the base type of mt.
func (b *RegistryBuilder) AddDeserializer(t SerializedDataType, mt MimeType, d Deserializer) *RegistryBuilder {
	if t == "" || mt.IsZero() || d == nil {
		panic(contractViolation("deserializer registration requires a type, a mime type and a deserializer"))
	}
	byMime, ok := b.deserializers[t]
	if !ok {
		byMime = map[string]Deserializer{}
		b.deserializers[t] = byMime
	}
	byMime[mt.BaseType()] = d
	return b
}

// SetDefaultMimeType sets the mime type used when serializing t without an
// explicit target format.
func (b *RegistryBuilder) SetDefaultMimeType(t SerializedDataType, mt MimeType) *RegistryBuilder {
	if t == "" || mt.IsZero() {
		panic(contractViolation("default mime type registration requires a type and a mime type"))
	}
	b.defaults[t] = mt
	return b
}

// Add registers c as serializer and deserializer for t.
func (b *RegistryBuilder) Add(t SerializedDataType, c Codec) *RegistryBuilder {
	return b.AddSerializer(t, c).AddDeserializer(t, c.MimeType(), c)
}

// Build returns an immutable snapshot of the registrations.
func (b *RegistryBuilder) Build() *Registry {
	r := &Registry{
		serializers:   maps.Clone(b.serializers),
		deserializers: make(map[SerializedDataType]map[string]Deserializer, len(b.deserializers)),
		defaults:      maps.Clone(b.defaults),
	}
	for t, byMime := range b.deserializers {
		r.deserializers[t] = maps.Clone(byMime)
	}
	return r
}

// Registry resolves codecs by type and mime type. It is read-only and safe
// for concurrent use.
type Registry struct {
	serializers   map[SerializedDataType]Serializer
	deserializers map[SerializedDataType]map[string]Deserializer
	defaults      map[SerializedDataType]MimeType
}

// Serializer returns the serializer registered for t.
func (r *Registry) Serializer(t SerializedDataType) (Serializer, error) {
	s, ok := r.serializers[t]
	if !ok {
		return nil, &NotFoundError{Kind: "serializer", Type: t}
	}
	return s, nil
}

// Deserializer resolves the deserializer for t and mt. An exact match on the
// base type wins; otherwise the only deserializer registered for t is used.
func (r *Registry) Deserializer(t SerializedDataType, mt MimeType) (Deserializer, error) {
	byMime := r.deserializers[t]
	if d, ok := byMime[mt.BaseType()]; ok {
		return d, nil
	}
	if len(byMime) == 1 {
		for _, d := range byMime {
			return d, nil
		}
	}
	return nil, &NotFoundError{Kind: "deserializer", Type: t, MimeType: mt.String()}
}

// DefaultMimeType returns the explicitly configured default or, failing
// that, the mime type of the registered serializer.
func (r *Registry) DefaultMimeType(t SerializedDataType) (MimeType, error) {
	if mt, ok := r.defaults[t]; ok {
		return mt, nil
	}
	if s, ok := r.serializers[t]; ok {
		return s.MimeType(), nil
	}
	return MimeType{}, &NotFoundError{Kind: "mime type", Type: t}
}

// Serialize marshals v with the serializer registered for t. The recorded
// mime type is the configured default when it shares the serializer's base
// type, so callers can pin version and encoding parameters.
func (r *Registry) Serialize(t SerializedDataType, v any) (SerializedData, error) {
	s, err := r.Serializer(t)
	if err != nil {
		return SerializedData{}, err
	}
	data, err := s.Marshal(v)
	if err != nil {
		return SerializedData{}, err
	}
	mt := s.MimeType()
	if def, ok := r.defaults[t]; ok && def.HasBase(mt) {
		mt = def
	}
	return SerializedData{Type: t, MimeType: mt, Data: data}, nil
}

// Deserialize resolves the deserializer for t and mt and reads in.
func (r *Registry) Deserialize(t SerializedDataType, mt MimeType, in Input) (any, error) {
	d, err := r.Deserializer(t, mt)
	if err != nil {
		return nil, err
	}
	return d.Unmarshal(in, mt)
}

// DeserializeData reads a SerializedData as produced by Serialize.
func (r *Registry) DeserializeData(sd SerializedData) (any, error) {
	return r.Deserialize(sd.Type, sd.MimeType, Bytes(sd.Data))
}

// Types lists all types with a serializer, sorted.
func (r *Registry) Types() []SerializedDataType {
	return slices.Sorted(maps.Keys(r.serializers))
}
