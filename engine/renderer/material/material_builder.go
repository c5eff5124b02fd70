package material

// MaterialBuilderOption is a functional option for configuring a Buffer.
type MaterialBuilderOption func(*Buffer)

// WithCapacity sets the number of material slots. Values below 1 are ignored.
func WithCapacity(n int) MaterialBuilderOption {
	return func(b *Buffer) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithTextureIndex sets the resolver used for diffuse texture maps.
func WithTextureIndex(ti TextureIndex) MaterialBuilderOption {
	return func(b *Buffer) {
		b.textures = ti
	}
}
