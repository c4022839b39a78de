package serial

type (
	registerOptions struct {
		name       TypeName
		codecOpts  []CodecOption
		setDefault bool
	}
	RegisterOption func(*registerOptions)
)

// WithTypeName overrides the derived type name.
func WithTypeName(name TypeName) RegisterOption {
	return func(o *registerOptions) { o.name = name }
}

// WithCodecOpts passes options to the created codec.
func WithCodecOpts(opts ...CodecOption) RegisterOption {
	return func(o *registerOptions) { o.codecOpts = append(o.codecOpts, opts...) }
}

// AsDefault also records the codec's mime type as the type's default.
func AsDefault() RegisterOption {
	return func(o *registerOptions) { o.setDefault = true }
}

// RegisterJSON registers a JSON codec for T and returns its wire type.
func RegisterJSON[T any](b *RegistryBuilder, opts ...RegisterOption) SerializedDataType {
	o := newRegisterOptions[T](opts)
	return register(b, o, NewJSONCodec[T](o.codecOpts...))
}

// RegisterXML registers an XML codec for T and returns its wire type.
func RegisterXML[T any](b *RegistryBuilder, opts ...RegisterOption) SerializedDataType {
	o := newRegisterOptions[T](opts)
	return register(b, o, NewXMLCodec[T](o.codecOpts...))
}

func newRegisterOptions[T any](opts []RegisterOption) registerOptions {
	o := registerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = TypeNameFor[T]()
	}
	return o
}

func register(b *RegistryBuilder, o registerOptions, c Codec) SerializedDataType {
	t := o.name.SerializedDataType()
	b.Add(t, c)
	if o.setDefault {
		b.SetDefaultMimeType(t, c.MimeType())
	}
	return t
}
