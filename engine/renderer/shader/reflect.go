package shader

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	structRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex  = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex    = regexp.MustCompile(`(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)`)
	vertexRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindingRegex matches declarations like
	// @group(0) @binding(1) var<storage, read> instances: array<Instance>;
	bindingRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// vertexFormats maps WGSL vertex input types to their wgpu format and byte size.
var vertexFormats = map[string]struct {
	format wgpu.VertexFormat
	size   uint64
}{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"i32":       {wgpu.VertexFormatSint32, 4},
}

type parsedField struct {
	name     string
	typeName string
	location int
	builtin  bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

// Binding is one buffer resource declared by a shader.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	Type    string

	// Entry is the layout entry with the buffer type and minimum binding size filled in.
	Entry wgpu.BindGroupLayoutEntry
}

// Reflection describes the entry points, vertex input and buffer bindings of a
// WGSL module containing a vertex and a fragment stage.
type Reflection struct {
	VertexEntry   string
	FragmentEntry string

	// VertexLayouts has one layout per vertex input struct, in declaration order.
	VertexLayouts []wgpu.VertexBufferLayout

	// Bindings is sorted by group, then binding.
	Bindings []Binding

	structs map[string]typeLayout
}

// Reflect parses WGSL source. Every binding is made visible to both stages.
//
// Parameters:
//   - source: the WGSL module source
//
// Returns:
//   - *Reflection: the parsed description
//   - error: if an entry point is missing, a vertex input has an unsupported type, or a buffer type cannot be sized
func Reflect(source string) (*Reflection, error) {
	src := stripComments(source)
	structs := parseStructs(src)
	r := &Reflection{structs: structLayouts(structs)}

	if m := vertexRegex.FindStringSubmatch(src); m != nil {
		r.VertexEntry = m[1]
	}
	if m := fragmentRegex.FindStringSubmatch(src); m != nil {
		r.FragmentEntry = m[1]
	}
	if r.VertexEntry == "" || r.FragmentEntry == "" {
		return nil, fmt.Errorf("shader: need a @vertex and a @fragment entry point")
	}

	for _, s := range structs {
		if !isVertexInput(s) {
			continue
		}
		layout, err := vertexLayout(s)
		if err != nil {
			return nil, err
		}
		r.VertexLayouts = append(r.VertexLayouts, layout)
	}

	for _, m := range bindingRegex.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.ParseUint(m[1], 10, 32)
		binding, _ := strconv.ParseUint(m[2], 10, 32)
		b := Binding{
			Group:   uint32(group),
			Binding: uint32(binding),
			Name:    m[4],
			Type:    strings.TrimSpace(m[5]),
			Entry: wgpu.BindGroupLayoutEntry{
				Binding:    uint32(binding),
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			},
		}

		space := strings.TrimSpace(m[3])
		switch {
		case space == "uniform":
			b.Entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case strings.HasPrefix(space, "storage") && strings.Contains(space, "read_write"):
			b.Entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		case strings.HasPrefix(space, "storage"):
			b.Entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		default:
			// Textures and samplers are not used by the engine's shaders.
			continue
		}

		size, ok := r.Size(b.Type)
		if !ok {
			return nil, fmt.Errorf("shader: cannot size binding %q of type %s", b.Name, b.Type)
		}
		b.Entry.Buffer.MinBindingSize = size
		r.Bindings = append(r.Bindings, b)
	}
	slices.SortFunc(r.Bindings, func(a, b Binding) int {
		return cmp.Or(cmp.Compare(a.Group, b.Group), cmp.Compare(a.Binding, b.Binding))
	})
	return r, nil
}

// Size returns the byte size of a WGSL type. Runtime-sized arrays report one element stride.
func (r *Reflection) Size(typeName string) (uint64, bool) {
	l, ok := resolve(typeName, r.structs)
	return l.size, ok
}

// Binding returns the binding declared under name.
func (r *Reflection) Binding(name string) (Binding, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// BindGroupLayout returns the layout descriptor of one bind group.
//
// Parameters:
//   - group: the @group index
//   - label: debug label for the layout
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: entries sorted by binding
func (r *Reflection) BindGroupLayout(group uint32, label string) wgpu.BindGroupLayoutDescriptor {
	desc := wgpu.BindGroupLayoutDescriptor{Label: label}
	for _, b := range r.Bindings {
		if b.Group == group {
			desc.Entries = append(desc.Entries, b.Entry)
		}
	}
	return desc
}

func parseStructs(src string) []parsedStruct {
	var structs []parsedStruct
	for _, m := range structRegex.FindAllStringSubmatch(src, -1) {
		structs = append(structs, parsedStruct{name: m[1], fields: parseFields(m[2])})
	}
	return structs
}

func parseFields(body string) []parsedField {
	var fields []parsedField
	for _, part := range splitTopLevel(body) {
		part = strings.TrimSpace(part)
		m := fieldRegex.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		f := parsedField{
			name:     m[1],
			typeName: strings.TrimSpace(m[2]),
			location: -1,
			builtin:  builtinRegex.MatchString(part),
		}
		if loc := locationRegex.FindStringSubmatch(part); loc != nil {
			f.location, _ = strconv.Atoi(loc[1])
		}
		fields = append(fields, f)
	}
	return fields
}

// isVertexInput reports whether s carries @location fields and no builtins,
// which separates vertex inputs from inter-stage structs.
func isVertexInput(s parsedStruct) bool {
	located := false
	for _, f := range s.fields {
		if f.builtin {
			return false
		}
		located = located || f.location >= 0
	}
	return located
}

func vertexLayout(s parsedStruct) (wgpu.VertexBufferLayout, error) {
	layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	for _, f := range s.fields {
		info, ok := vertexFormats[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("shader: vertex input %s.%s has unsupported type %s", s.name, f.name, f.typeName)
		}
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         layout.ArrayStride,
			ShaderLocation: uint32(f.location),
		})
		layout.ArrayStride += info.size
	}
	return layout, nil
}

// splitTopLevel splits at commas outside angle brackets, so array<T, N> stays whole.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComments removes line comments and nested block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch source[i : i+2] {
			case "/*":
				depth++
				i++
				continue
			case "*/":
				depth = max(depth-1, 0)
				i++
				continue
			case "//":
				if depth == 0 {
					for i < len(source) && source[i] != '\n' {
						i++
					}
					if i < len(source) {
						sb.WriteByte('\n')
					}
					continue
				}
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
